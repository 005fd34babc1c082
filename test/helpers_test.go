//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/login"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}

	// Cluster mode: when REDIS_CLUSTER_ADDRS is set (comma-separated).
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}

	// Sentinel mode: when REDIS_SENTINEL_ADDRS and REDIS_SENTINEL_MASTER are set.
	if addrs := os.Getenv("REDIS_SENTINEL_ADDRS"); addrs != "" {
		master := os.Getenv("REDIS_SENTINEL_MASTER")
		if master == "" {
			master = "mymaster"
		}
		modes = append(modes, redisMode{
			name: "sentinel",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:    master,
					SentinelAddrs: splitAddrs(addrs),
				})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis sentinel: %v", err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

var signingKey = []byte("integration-signing-key")

// provider is an in-process authorization server. It approves every
// authorization request without a prompt.
type provider struct {
	srv *httptest.Server

	tokenCalls   atomic.Int64
	refreshCalls atomic.Int64
	latency      atomic.Int64

	mu       sync.Mutex
	failNext bool
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{}
	r := chi.NewRouter()
	r.Get("/authorize", p.authorize)
	r.Post("/token", p.token)
	p.srv = httptest.NewServer(r)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *provider) endpoints() discovery.Static {
	return discovery.Static{
		Issuer:                p.srv.URL,
		AuthorizationEndpoint: p.srv.URL + "/authorize",
		TokenEndpoint:         p.srv.URL + "/token",
		EndSessionEndpoint:    p.srv.URL + "/logout",
	}
}

func (p *provider) rejectNextRefresh() {
	p.mu.Lock()
	p.failNext = true
	p.mu.Unlock()
}

func (p *provider) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	back, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		http.Error(w, "bad redirect_uri", http.StatusBadRequest)
		return
	}
	back.RawQuery = url.Values{"code": {"code-1"}, "state": {q.Get("state")}}.Encode()
	http.Redirect(w, r, back.String(), http.StatusFound)
}

func (p *provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	n := p.tokenCalls.Add(1)
	if r.PostForm.Get("grant_type") == "refresh_token" {
		p.refreshCalls.Add(1)
		p.mu.Lock()
		fail := p.failNext
		p.failNext = false
		p.mu.Unlock()
		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
	}
	if d := time.Duration(p.latency.Load()); d > 0 {
		time.Sleep(d)
	}

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"contactId":  "contact-1",
		"email":      "alice@example.com",
		"given_name": "Alice",
		"roles":      []string{"reader"},
		"exp":        time.Now().Add(time.Hour).Unix(),
	}).SignedString(signingKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  fmt.Sprintf("access-%d", n),
		"refresh_token": fmt.Sprintf("refresh-%d", n),
		"id_token":      idToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

// stack is a running application: gate, login routes and guarded pages.
type stack struct {
	provider *provider
	gate     *goGate.Gate
	app      *httptest.Server
	client   *http.Client
	cookie   string
}

func newStack(t *testing.T, rdb redis.UniversalClient) *stack {
	t.Helper()
	p := newProvider(t)
	s := &stack{provider: p}

	r := chi.NewRouter()
	s.app = httptest.NewServer(r)
	t.Cleanup(s.app.Close)

	cfg := goGate.DefaultConfig()
	cfg.OIDC.DiscoveryURL = p.srv.URL + "/.well-known/openid-configuration"
	cfg.OIDC.ClientID = "client-1"
	cfg.OIDC.ClientSecret = "secret-1"
	cfg.OIDC.ServiceID = "service-1"
	cfg.App.BaseURL = s.app.URL
	cfg.Session.CookieSecure = false
	cfg.Redis.KeyPrefix = "it:"

	gate, err := goGate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithResolver(p.endpoints()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(gate.Close)
	s.gate = gate

	lh, err := login.NewHandler(gate, p.endpoints(), login.ConfigFromGate(cfg))
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}

	r.Use(middleware.Sessions(middleware.CookieConfig{}))
	lh.Mount(r)
	r.With(middleware.RequireAuth(gate)).Get("/account", func(w http.ResponseWriter, r *http.Request) {
		rec, _ := middleware.CredentialsFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]string{"contactId": rec.SubjectID, "accessToken": rec.AccessToken})
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	s.client = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	return s
}

// sessionID returns the session cookie the browser currently holds.
func (s *stack) sessionID(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(s.app.URL)
	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == middleware.DefaultCookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie in jar")
	return ""
}

// account fetches /account following redirects, and returns the final
// response status and decoded body.
func (s *stack) account(t *testing.T) (int, map[string]string) {
	t.Helper()
	resp, err := s.client.Get(s.app.URL + "/account")
	if err != nil {
		t.Fatalf("GET /account: %v", err)
	}
	defer resp.Body.Close()
	body := map[string]string{}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, body
}
