package goGate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/logctx"
	"github.com/MrEthical07/goGate/redirect"
	"github.com/MrEthical07/goGate/refresh"
	"github.com/MrEthical07/goGate/session"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goGate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      session.Store
	resolver   discovery.Resolver
	refresher  Refresher
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink
	now        func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the redis session engine.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides the session store; Session.Engine is then ignored.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithResolver overrides the OIDC discovery resolver.
func (b *Builder) WithResolver(resolver discovery.Resolver) *Builder {
	b.resolver = resolver
	return b
}

// WithRefresher overrides the token endpoint client.
func (b *Builder) WithRefresher(r Refresher) *Builder {
	b.refresher = r
	return b
}

// WithHTTPClient sets the HTTP client used for discovery and token exchanges.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. Nil uses slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink; events flow only when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source used for expiry decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when configuration validation fails or a required
// dependency is missing. A Builder can be used once.
func (b *Builder) Build() (*Gate, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logctx.Wrap(logger).With("component", "gogate")

	store := b.store
	if store == nil {
		switch cfg.Session.Engine {
		case EngineRedis:
			if b.redis == nil {
				return nil, errors.New("redis client required")
			}
			store = session.NewRedisStore(b.redis, cfg.Redis.KeyPrefix, cfg.Session.TTL)
		case EngineMemory:
			store = session.NewMemoryStore(cfg.Session.TTL)
		}
	}

	resolver := b.resolver
	if resolver == nil {
		var opts []discovery.Option
		if cfg.OIDC.Issuer != "" {
			opts = append(opts, discovery.WithIssuer(cfg.OIDC.Issuer))
		}
		if b.httpClient != nil {
			opts = append(opts, discovery.WithHTTPClient(b.httpClient))
		}
		r, err := discovery.NewOIDCResolver(cfg.OIDC.DiscoveryURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		resolver = r
	}

	refresher := b.refresher
	if refresher == nil {
		opts := []refresh.Option{refresh.WithLogger(logger)}
		if b.httpClient != nil {
			opts = append(opts, refresh.WithHTTPClient(b.httpClient))
		}
		c, err := refresh.NewClient(resolver, refresh.Config{
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			TraceHeader:  cfg.Tracing.Header,
			Timeout:      cfg.Refresh.Timeout,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		refresher = c
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// A memory store supplied through WithStore is swept by its owner.
	var stopSweep func()
	if mem, ok := store.(*session.MemoryStore); ok && b.store == nil {
		stopSweep = mem.StartSweeper(session.DefaultSweepInterval)
	}

	g := &Gate{
		config:    cfg,
		store:     store,
		resolver:  resolver,
		refresher: refresher,
		redirects: redirect.Builder{LoginPath: cfg.Redirect.LoginPath},
		metrics:   NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        now,
		}, b.auditSink),
		logger:    logger,
		now:       now,
		stopSweep: stopSweep,
	}
	g.initFlows()

	b.built = true

	return g, nil
}
