package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/login"
	"github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

type appDeps struct {
	resolver discovery.Resolver
	redis    redis.UniversalClient
}

type app struct {
	gate    *goGate.Gate
	handler http.Handler
	redis   redis.UniversalClient
}

func (a *app) Close() {
	a.gate.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// newApp wires the gate, the login handler and the application routes.
// Dependencies left nil in deps are built from cfg.
func newApp(cfg goGate.Config, logger *slog.Logger, deps appDeps) (*app, error) {
	if cfg.Session.Engine == goGate.EngineRedis && deps.redis == nil {
		deps.redis = redis.NewClient(cfg.Redis.Options())
	}

	builder := goGate.New().
		WithConfig(cfg).
		WithLogger(logger)
	if deps.resolver != nil {
		builder = builder.WithResolver(deps.resolver)
	}
	if deps.redis != nil {
		builder = builder.WithRedis(deps.redis)
	}
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goGate.NewSlogSink(logger.With("stream", "audit")))
	}
	gate, err := builder.Build()
	if err != nil {
		if deps.redis != nil {
			_ = deps.redis.Close()
		}
		return nil, err
	}

	loginHandler, err := login.NewHandler(gate, gate.Resolver(), login.ConfigFromGate(cfg), login.WithLogger(logger))
	if err != nil {
		gate.Close()
		return nil, err
	}

	traceHeader := middleware.WithTraceHeader(cfg.Tracing.Header)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/health", healthHandler(gate))
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", prometheus.NewExporter(gate).Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Sessions(middleware.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		}))
		loginHandler.Mount(r)

		r.With(middleware.TryAuth(gate, traceHeader)).Get("/", homeHandler)
		r.With(middleware.RequireAuth(gate, traceHeader)).Get("/account", accountHandler)
	})

	return &app{gate: gate, handler: r, redis: deps.redis}, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(gate *goGate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := gate.Store().(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	}
}

type homeView struct {
	Authenticated bool   `json:"authenticated"`
	DisplayName   string `json:"displayName,omitempty"`
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	view := homeView{}
	if rec, ok := middleware.CredentialsFromContext(r.Context()); ok {
		view.Authenticated = true
		view.DisplayName = rec.DisplayName
	}
	writeJSON(w, view)
}

// accountView is the credential view returned to the browser. Tokens stay server side.
type accountView struct {
	SubjectID     string            `json:"contactId"`
	Email         string            `json:"email"`
	DisplayName   string            `json:"displayName"`
	Roles         []string          `json:"roles"`
	Relationships []json.RawMessage `json:"relationships"`
	AAL           string            `json:"aal,omitempty"`
	LOA           string            `json:"loa,omitempty"`
	ExpiresAt     time.Time         `json:"expiresAt"`
}

func newAccountView(rec *session.Record) accountView {
	return accountView{
		SubjectID:     rec.SubjectID,
		Email:         rec.Email,
		DisplayName:   rec.DisplayName,
		Roles:         rec.Roles,
		Relationships: rec.Relationships,
		AAL:           rec.AuthenticatorAssuranceLevel,
		LOA:           rec.AssuranceLevel,
		ExpiresAt:     rec.ExpiresAt,
	}
}

func accountHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := middleware.CredentialsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, newAccountView(rec))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode: %v", err), http.StatusInternalServerError)
	}
}
