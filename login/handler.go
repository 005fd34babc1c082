package login

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/internal/logctx"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/redirect"
	"github.com/MrEthical07/goGate/session"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Default route paths.
const (
	DefaultLoginPath    = "/auth/login"
	DefaultCallbackPath = "/auth/callback"
	DefaultLogoutPath   = "/auth/logout"
)

// DefaultStateTTL bounds how long a login round trip may take.
const DefaultStateTTL = 10 * time.Minute

// DefaultScopes are requested on every login.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}

// ErrInvalidConfig is returned by NewHandler for unusable configuration.
var ErrInvalidConfig = errors.New("invalid login configuration")

// Gate is the part of [*goGate.Gate] the handlers need.
type Gate interface {
	CompleteLogin(ctx context.Context, sessionID string, rec *session.Record) error
	Logout(ctx context.Context, sessionID string) (string, error)
	TakeRedirectPath(ctx context.Context, sessionID string) string
	Store() session.Store
}

// Config holds the client registration and route paths.
type Config struct {
	ClientID     string
	ClientSecret string
	// ServiceID is forwarded as the serviceId authorization parameter when set.
	ServiceID   string
	RedirectURL string
	Scopes      []string

	LoginPath    string
	CallbackPath string
	LogoutPath   string
	StateTTL     time.Duration
}

// ConfigFromGate derives the handler configuration from the gate configuration.
func ConfigFromGate(cfg goGate.Config) Config {
	out := Config{
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		ServiceID:    cfg.OIDC.ServiceID,
		RedirectURL:  cfg.CallbackURL(),
		LoginPath:    cfg.Redirect.LoginPath,
	}
	if u, err := url.Parse(out.RedirectURL); err == nil && u.Path != "" {
		out.CallbackPath = u.Path
	}
	return out
}

// Option configures a [Handler].
type Option func(*Handler)

// WithHTTPClient sets the client used for the code exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(h *Handler) {
		h.httpClient = client
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClock overrides time.Now for state expiry and record expiry.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// Handler serves the login, callback and logout routes.
type Handler struct {
	gate       Gate
	resolver   discovery.Resolver
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	newState   func() string
}

// NewHandler validates cfg and returns a Handler. The resolver should be the
// one shared with the gate so discovery happens once.
func NewHandler(gate Gate, resolver discovery.Resolver, cfg Config, opts ...Option) (*Handler, error) {
	if gate == nil || resolver == nil {
		return nil, fmt.Errorf("%w: gate and resolver are required", ErrInvalidConfig)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: ClientID is required", ErrInvalidConfig)
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("%w: RedirectURL is required", ErrInvalidConfig)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = DefaultCallbackPath
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = DefaultLogoutPath
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}

	h := &Handler{
		gate:     gate,
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
		newState: uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logctx.Wrap(h.logger).With("component", "gogate.login")
	return h, nil
}

// Mount registers the three routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get(h.cfg.LoginPath, h.Login)
	r.Get(h.cfg.CallbackPath, h.Callback)
	r.Get(h.cfg.LogoutPath, h.Logout)
}

func (h *Handler) oauth2Config(ctx context.Context) (*oauth2.Config, error) {
	ep, err := h.resolver.Endpoints(ctx)
	if err != nil {
		return nil, err
	}
	if ep.AuthorizationEndpoint == "" || ep.TokenEndpoint == "" {
		return nil, discovery.ErrDiscoveryIncomplete
	}
	return &oauth2.Config{
		ClientID:     h.cfg.ClientID,
		ClientSecret: h.cfg.ClientSecret,
		RedirectURL:  h.cfg.RedirectURL,
		Scopes:       h.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   ep.AuthorizationEndpoint,
			TokenURL:  ep.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

// Login starts the authorization-code flow. A login_hint query parameter is
// forwarded after sanitizing; a local redirect parameter is remembered as the
// post-login destination when the gate saved none.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := middleware.SessionIDFromContext(ctx)
	if sid == "" {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	conf, err := h.oauth2Config(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "goGate: provider endpoints unavailable", "error", err)
		http.Error(w, "identity provider unavailable", http.StatusBadGateway)
		return
	}

	state := session.LoginState{
		State:     h.newState(),
		Verifier:  oauth2.GenerateVerifier(),
		CreatedAt: h.now().UTC(),
	}
	if p := r.URL.Query().Get("redirect"); p != "" {
		state.ReturnPath = redirect.SafeReturnPath(p)
	}
	if err := session.SaveLoginState(ctx, h.gate.Store(), sid, state); err != nil {
		h.logger.ErrorContext(ctx, "goGate: saving login state failed", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(state.Verifier)}
	if h.cfg.ServiceID != "" {
		opts = append(opts, oauth2.SetAuthURLParam("serviceId", h.cfg.ServiceID))
	}
	if hint, ok := redirect.IdentityHint(r.URL.Query()); ok {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", hint))
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, conf.AuthCodeURL(state.State, opts...), http.StatusFound)
}

// Callback redeems the authorization code and creates the session.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	sid := middleware.SessionIDFromContext(ctx)
	if sid == "" {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	if e := q.Get("error"); e != "" {
		h.logger.WarnContext(ctx, "goGate: provider returned an error", "error", e, "description", q.Get("error_description"))
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	code, gotState := q.Get("code"), q.Get("state")
	if code == "" || gotState == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	pending, err := session.TakeLoginState(ctx, h.gate.Store(), sid)
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrRecordCorrupt):
		http.Error(w, "no login in progress", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "goGate: reading login state failed", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	if subtle.ConstantTimeCompare([]byte(pending.State), []byte(gotState)) != 1 {
		h.logger.WarnContext(ctx, "goGate: login state mismatch")
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	if h.now().Sub(pending.CreatedAt) > h.cfg.StateTTL {
		http.Error(w, "login expired", http.StatusBadRequest)
		return
	}

	rec, err := h.exchange(ctx, code, pending.Verifier)
	if err != nil {
		h.logger.ErrorContext(ctx, "goGate: code exchange failed", "error", err)
		http.Error(w, "login failed", http.StatusBadGateway)
		return
	}
	if err := h.gate.CompleteLogin(ctx, sid, rec); err != nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	dest := h.gate.TakeRedirectPath(ctx, sid)
	if dest == session.DefaultRedirectPath && pending.ReturnPath != "" {
		dest = pending.ReturnPath
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *Handler) exchange(ctx context.Context, code, verifier string) (*session.Record, error) {
	conf, err := h.oauth2Config(ctx)
	if err != nil {
		return nil, err
	}
	if h.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	}

	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, err
	}
	raw, err := IdentityToken(token)
	if err != nil {
		return nil, err
	}
	claims, err := jwt.Parse(raw)
	if err != nil {
		return nil, err
	}
	return NewRecord(claims, token, h.now())
}

// Logout clears the session record and sends the browser to the provider's
// end-session endpoint.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	dest, err := h.gate.Logout(r.Context(), middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, dest, http.StatusFound)
}
