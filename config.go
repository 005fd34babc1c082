package goGate

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Session storage engines.
const (
	EngineRedis  = "redis"
	EngineMemory = "memory"
)

const maxRefreshTimeout = 60 * time.Second

// Config defines a public type used by goGate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	OIDC     OIDCConfig
	Refresh  RefreshConfig
	Tracing  TracingConfig
	Session  SessionConfig
	Redis    RedisConfig
	Redirect RedirectConfig
	App      AppConfig
	Server   ServerConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
OIDC CONFIG
====================================
*/

// OIDCConfig defines a public type used by goGate APIs.
//
// OIDCConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OIDCConfig struct {
	DiscoveryURL string `env:"OIDC_DISCOVERY_URL"`
	ClientID     string `env:"OIDC_CLIENT_ID"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET"`
	// ServiceID is sent as the serviceId authorization parameter.
	ServiceID string `env:"OIDC_SERVICE_ID"`
	// Issuer overrides the issuer derived from DiscoveryURL.
	Issuer string `env:"OIDC_ISSUER"`
	// RedirectURL defaults to App.BaseURL + "/auth/callback".
	RedirectURL string `env:"OIDC_REDIRECT_URL"`
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by goGate APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// BufferMinutes is how long before expiry a record is treated as expired.
	BufferMinutes int           `env:"TOKEN_REFRESH_BUFFER_MINUTES,default=1"`
	Timeout       time.Duration `env:"TOKEN_REFRESH_TIMEOUT,default=5s"`
	SingleFlight  bool          `env:"TOKEN_REFRESH_SINGLE_FLIGHT,default=true"`
}

// Buffer returns BufferMinutes as a duration.
func (c RefreshConfig) Buffer() time.Duration {
	return time.Duration(c.BufferMinutes) * time.Minute
}

// TracingConfig defines a public type used by goGate APIs.
//
// TracingConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TracingConfig struct {
	Header string `env:"TRACING_HEADER,default=x-cdp-request-id"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goGate APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	Engine       string        `env:"SESSION_CACHE_ENGINE,default=redis"`
	TTL          time.Duration `env:"SESSION_CACHE_TTL,default=4h"`
	CookieName   string        `env:"SESSION_COOKIE_NAME,default=session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE,default=true"`
}

// RedisConfig defines a public type used by goGate APIs.
//
// RedisConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisConfig struct {
	Host      string `env:"REDIS_HOST,default=127.0.0.1:6379"`
	Username  string `env:"REDIS_USERNAME"`
	Password  string `env:"REDIS_PASSWORD"`
	TLS       bool   `env:"REDIS_TLS,default=false"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX,default=gogate:"`
}

// Options returns go-redis client options for this configuration.
func (c RedisConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:     c.Host,
		Username: c.Username,
		Password: c.Password,
	}
	if c.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

/*
====================================
ROUTING CONFIG
====================================
*/

// RedirectConfig defines a public type used by goGate APIs.
//
// RedirectConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedirectConfig struct {
	LoginPath string `env:"LOGIN_PATH,default=/auth/login"`
}

// AppConfig defines a public type used by goGate APIs.
//
// AppConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AppConfig struct {
	// BaseURL is the externally visible origin, used for the OAuth callback
	// and the post-logout redirect.
	BaseURL string `env:"APP_BASE_URL,default=http://localhost:3000"`
}

// ServerConfig defines a public type used by goGate APIs.
//
// ServerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ServerConfig struct {
	Port int `env:"PORT,default=3000"`
}

// AuditConfig defines a public type used by goGate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `env:"AUDIT_ENABLED,default=false"`
	BufferSize int  `env:"AUDIT_BUFFER_SIZE,default=1024"`
	DropIfFull bool `env:"AUDIT_DROP_IF_FULL,default=true"`
}

// MetricsConfig defines a public type used by goGate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `env:"METRICS_ENABLED,default=true"`
	EnableLatencyHistograms bool `env:"METRICS_LATENCY_HISTOGRAMS,default=false"`
}

// DefaultConfig returns the configuration used when no environment is set.
// OIDC credentials are empty and must be supplied before Validate passes.
func DefaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			BufferMinutes: 1,
			Timeout:       5 * time.Second,
			SingleFlight:  true,
		},
		Tracing: TracingConfig{
			Header: "x-cdp-request-id",
		},
		Session: SessionConfig{
			Engine:       EngineRedis,
			TTL:          4 * time.Hour,
			CookieName:   "session",
			CookieSecure: true,
		},
		Redis: RedisConfig{
			Host:      "127.0.0.1:6379",
			KeyPrefix: "gogate:",
		},
		Redirect: RedirectConfig{
			LoginPath: "/auth/login",
		},
		App: AppConfig{
			BaseURL: "http://localhost:3000",
		},
		Server: ServerConfig{
			Port: 3000,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfigFromEnv decodes Config from environment variables, applying the
// defaults declared on each field. Values that fail to parse are errors.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// CallbackURL returns OIDC.RedirectURL, or App.BaseURL + "/auth/callback" when unset.
func (c *Config) CallbackURL() string {
	if c.OIDC.RedirectURL != "" {
		return c.OIDC.RedirectURL
	}
	return strings.TrimSuffix(c.App.BaseURL, "/") + "/auth/callback"
}

// Validate describes the validate operation and its observable behavior.
//
// Validate reports every problem found, joined with errors.Join; each one
// wraps ErrInvalidConfig.
// Validate does not mutate shared global state and can be used concurrently.
func (c *Config) Validate() error {
	var errs []error
	fail := func(msg string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, msg))
	}

	// OIDC
	if c.OIDC.DiscoveryURL == "" {
		fail("OIDC DiscoveryURL is required")
	} else if !isAbsoluteURL(c.OIDC.DiscoveryURL) {
		fail("OIDC DiscoveryURL must be an absolute http(s) URL")
	}
	if c.OIDC.ClientID == "" {
		fail("OIDC ClientID is required")
	}
	if c.OIDC.ClientSecret == "" {
		fail("OIDC ClientSecret is required")
	}
	if c.OIDC.ServiceID == "" {
		fail("OIDC ServiceID is required")
	}
	if c.OIDC.RedirectURL != "" && !isAbsoluteURL(c.OIDC.RedirectURL) {
		fail("OIDC RedirectURL must be an absolute http(s) URL")
	}

	// Refresh
	if c.Refresh.BufferMinutes < 0 {
		fail("Refresh BufferMinutes must be >= 0")
	}
	if c.Refresh.Timeout <= 0 {
		fail("Refresh Timeout must be > 0")
	}
	if c.Refresh.Timeout > maxRefreshTimeout {
		fail("Refresh Timeout must be <= 60s")
	}

	if strings.TrimSpace(c.Tracing.Header) == "" {
		fail("Tracing Header must not be empty")
	}

	// Session
	if c.Session.Engine != EngineRedis && c.Session.Engine != EngineMemory {
		fail("Session Engine must be \"redis\" or \"memory\"")
	}
	if c.Session.TTL <= 0 {
		fail("Session TTL must be > 0")
	}
	if c.Session.CookieName == "" {
		fail("Session CookieName is required")
	}
	if c.Session.Engine == EngineRedis && c.Redis.Host == "" {
		fail("Redis Host is required when Session Engine is redis")
	}

	if !strings.HasPrefix(c.Redirect.LoginPath, "/") || strings.HasPrefix(c.Redirect.LoginPath, "//") {
		fail("Redirect LoginPath must be a local absolute path")
	}
	if !isAbsoluteURL(c.App.BaseURL) {
		fail("App BaseURL must be an absolute http(s) URL")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("Server Port must be in 1..65535")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		fail("Audit BufferSize must be > 0 when audit is enabled")
	}

	return errors.Join(errs...)
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
