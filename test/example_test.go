package test

import (
	"context"
	"fmt"
	"net/http"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/redis/go-redis/v9"
)

// Example_new demonstrates gate construction with production-style dependencies.
func Example_new() {
	cfg, err := goGate.LoadConfigFromEnv()
	if err != nil {
		return
	}
	rdb := redis.NewClient(cfg.Redis.Options())

	gate, _ := goGate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	_ = gate
}

// Example_authenticate shows a direct gate call outside the middleware.
func Example_authenticate() {
	var gate *goGate.Gate
	d := gate.Authenticate(context.Background(), goGate.Request{SessionID: "sid", Mode: goGate.ModeRequired})
	if d.IsDenied() {
		fmt.Println("redirect to", d.RedirectURL)
	}
}

// Example_requireAuth guards a handler with the gate.
func Example_requireAuth() {
	var gate *goGate.Gate
	mux := http.NewServeMux()
	mux.Handle("/account", middleware.Sessions(middleware.CookieConfig{})(
		middleware.RequireAuth(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, _ := middleware.CredentialsFromContext(r.Context())
			fmt.Fprintln(w, rec.DisplayName)
		})),
	))
}

// Example_metricsSnapshot shows how to read in-process metrics counters.
func Example_metricsSnapshot() {
	var gate *goGate.Gate
	snapshot := gate.MetricsSnapshot()
	_ = snapshot
}
