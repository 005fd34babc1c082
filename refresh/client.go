package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/discovery"
)

const (
	// DefaultTraceHeader carries the request trace id to the token endpoint.
	DefaultTraceHeader = "x-cdp-request-id"
	// DefaultTimeout bounds one token endpoint exchange.
	DefaultTimeout = 5 * time.Second

	// MaxExpiresIn is the largest expires_in, in seconds, that still fits a
	// time.Duration.
	MaxExpiresIn = math.MaxInt64 / int64(time.Second)

	maxResponseSize = 1 << 20
)

// Config holds client credentials and wire options.
type Config struct {
	ClientID     string
	ClientSecret string
	// TraceHeader names the correlation header. Empty uses DefaultTraceHeader.
	TraceHeader string
	// Timeout bounds one exchange. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Tokens is a successful refresh-token grant response.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
	IDToken      string
	Scope        string
	// Extra holds every response member not mapped above.
	Extra map[string]json.RawMessage
}

// ExpiresAt returns now + ExpiresIn seconds.
func (t *Tokens) ExpiresAt(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for exchange outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client performs refresh-token grants. It is stateless apart from its
// configuration and safe for concurrent use.
type Client struct {
	resolver   discovery.Resolver
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a [Client].
func NewClient(resolver discovery.Resolver, cfg Config, opts ...Option) (*Client, error) {
	if resolver == nil {
		return nil, errors.New("refresh: resolver is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("refresh: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("refresh: client secret is required")
	}
	if cfg.TraceHeader == "" {
		cfg.TraceHeader = DefaultTraceHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		resolver: resolver,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return c, nil
}

// Refresh exchanges refreshToken for new tokens. traceID, when non-empty, is sent
// in the configured trace header. A single attempt is made.
func (c *Client) Refresh(ctx context.Context, refreshToken, traceID string) (*Tokens, error) {
	endpoints, err := c.resolver.Endpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}
	if endpoints.TokenEndpoint == "" {
		return nil, ErrEndpointUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}

	c.logger.DebugContext(ctx, "sending token refresh request",
		"token_endpoint", endpoints.TokenEndpoint,
		"has_trace_id", traceID != "",
	)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoints.TokenEndpoint,
		strings.NewReader(encodeForm(form)),
	)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if traceID != "" {
		req.Header.Set(c.cfg.TraceHeader, traceID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "token refresh transport failure",
			"token_endpoint", endpoints.TokenEndpoint,
			"elapsed", time.Since(start),
		)
		return nil, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "token refresh rejected",
			"status", resp.StatusCode,
			"elapsed", time.Since(start),
		)
		return nil, &RejectedError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
	}

	tokens, err := parseTokenResponse(body)
	if err != nil {
		c.logger.WarnContext(ctx, "token refresh response malformed", "error", err)
		return nil, err
	}

	c.logger.InfoContext(ctx, "token refresh successful",
		"has_new_refresh_token", tokens.RefreshToken != "",
		"expires_in", tokens.ExpiresIn,
		"elapsed", time.Since(start),
	)
	return tokens, nil
}

// encodeForm writes the grant parameters in wire order.
func encodeForm(form url.Values) string {
	order := []string{"grant_type", "refresh_token", "client_id", "client_secret"}
	var b strings.Builder
	for _, k := range order {
		for _, v := range form[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func parseTokenResponse(body []byte) (*Tokens, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedResponseError{Reason: "body is not a JSON object"}
	}

	tokens := &Tokens{Extra: make(map[string]json.RawMessage)}
	for k, v := range raw {
		var err error
		switch k {
		case "access_token":
			err = json.Unmarshal(v, &tokens.AccessToken)
		case "refresh_token":
			err = json.Unmarshal(v, &tokens.RefreshToken)
		case "expires_in":
			tokens.ExpiresIn, err = parseExpiresIn(v)
		case "token_type":
			err = json.Unmarshal(v, &tokens.TokenType)
		case "id_token":
			err = json.Unmarshal(v, &tokens.IDToken)
		case "scope":
			err = json.Unmarshal(v, &tokens.Scope)
		default:
			tokens.Extra[k] = v
		}
		if err != nil {
			return nil, &MalformedResponseError{Reason: "invalid " + k}
		}
	}

	if tokens.AccessToken == "" {
		return nil, &MalformedResponseError{Reason: "missing access_token"}
	}
	if tokens.ExpiresIn <= 0 {
		return nil, &MalformedResponseError{Reason: "missing or non-positive expires_in"}
	}
	if tokens.ExpiresIn > MaxExpiresIn {
		return nil, &MalformedResponseError{Reason: "expires_in out of range"}
	}
	return tokens, nil
}

// parseExpiresIn accepts an integer or a numeric string.
func parseExpiresIn(v json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		n = json.Number(s)
	}
	return n.Int64()
}
