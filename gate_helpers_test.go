package goGate

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/refresh"
	"github.com/MrEthical07/goGate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testNow}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type refreshCall struct {
	refreshToken string
	traceID      string
}

// fakeRefresher records calls and answers with respond, or a fixed rotation
// when respond is nil.
type fakeRefresher struct {
	mu      sync.Mutex
	calls   []refreshCall
	count   atomic.Int64
	release chan struct{}
	respond func(refreshToken string) (*refresh.Tokens, error)
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken, traceID string) (*refresh.Tokens, error) {
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, refreshCall{refreshToken: refreshToken, traceID: traceID})
	f.mu.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, &refresh.TransportError{Err: ctx.Err()}
		}
	}
	if f.respond != nil {
		return f.respond(refreshToken)
	}
	return &refresh.Tokens{
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresIn:    3600,
		TokenType:    "Bearer",
	}, nil
}

func (f *fakeRefresher) Calls() []refreshCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]refreshCall(nil), f.calls...)
}

// writeCountingStore counts mutations reaching the wrapped store and can be
// told to fail them.
type writeCountingStore struct {
	session.Store
	sets     atomic.Int64
	clears   atomic.Int64
	failSets atomic.Bool
	// endOnRead removes the key right after the next Get returns it, as a
	// logout racing the reader would.
	endOnRead atomic.Bool
}

func (s *writeCountingStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	value, err := s.Store.Get(ctx, sessionID, key)
	if err == nil && s.endOnRead.CompareAndSwap(true, false) {
		if clearErr := s.Store.Clear(ctx, sessionID, key); clearErr != nil {
			return nil, clearErr
		}
	}
	return value, err
}

func (s *writeCountingStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	s.sets.Add(1)
	if s.failSets.Load() {
		return errors.New("set refused")
	}
	return s.Store.Set(ctx, sessionID, key, value)
}

func (s *writeCountingStore) Clear(ctx context.Context, sessionID, key string) error {
	s.clears.Add(1)
	return s.Store.Clear(ctx, sessionID, key)
}

func (s *writeCountingStore) Writes() int64 {
	return s.sets.Load() + s.clears.Load()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func gateTestConfig() Config {
	cfg := DefaultConfig()
	cfg.OIDC.DiscoveryURL = "https://idp.example.com/.well-known/openid-configuration"
	cfg.OIDC.ClientID = "client-1"
	cfg.OIDC.ClientSecret = "secret-1"
	cfg.OIDC.ServiceID = "service-1"
	cfg.App.BaseURL = "https://app.example.com"
	return cfg
}

var testEndpoints = discovery.Static{
	Issuer:                "https://idp.example.com",
	AuthorizationEndpoint: "https://idp.example.com/authorize",
	TokenEndpoint:         "https://idp.example.com/token",
	EndSessionEndpoint:    "https://idp.example.com/logout",
}

type gateFixture struct {
	gate      *Gate
	store     *writeCountingStore
	refresher *fakeRefresher
	clock     *testClock
	mr        *miniredis.Miniredis
	audit     *ChannelSink
}

type gateOption func(*Config, *Builder)

func newGateFixture(t *testing.T, opts ...gateOption) *gateFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cfg := gateTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	f := &gateFixture{
		store:     &writeCountingStore{Store: session.NewRedisStore(rdb, "gg:", time.Hour)},
		refresher: &fakeRefresher{},
		clock:     newTestClock(),
		mr:        mr,
		audit:     NewChannelSink(64),
	}

	b := New().
		WithStore(f.store).
		WithResolver(testEndpoints).
		WithRefresher(f.refresher).
		WithClock(f.clock.Now).
		WithAuditSink(f.audit)
	for _, opt := range opts {
		opt(&cfg, b)
	}
	b.WithConfig(cfg)

	g, err := b.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	f.gate = g

	t.Cleanup(func() {
		g.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return f
}

func testRecord(expiresAt time.Time) *session.Record {
	return &session.Record{
		SubjectID:    "contact-1",
		Email:        "user@example.com",
		DisplayName:  "Ada",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt.UTC(),
		Roles:        []string{"Admin"},
	}
}

// seed stores rec directly, bypassing the write counters.
func (f *gateFixture) seed(t *testing.T, sessionID string, rec *session.Record) {
	t.Helper()
	if err := session.SaveRecord(context.Background(), f.store.Store, sessionID, rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func (f *gateFixture) stored(t *testing.T, sessionID string) *session.Record {
	t.Helper()
	rec, err := session.LoadRecord(context.Background(), f.store.Store, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	return rec
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func drainAudit(sink *ChannelSink, want int, timeout time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, want)
	deadline := time.After(timeout)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}
