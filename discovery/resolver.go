package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

const wellKnownSuffix = "/.well-known/openid-configuration"

var (
	// ErrDiscoveryFailed wraps fetch and decode failures of the discovery document.
	ErrDiscoveryFailed = errors.New("oidc discovery failed")
	// ErrDiscoveryIncomplete is returned when required endpoints are missing.
	ErrDiscoveryIncomplete = errors.New("oidc discovery incomplete")
)

// Endpoints holds the provider endpoints advertised by the discovery document.
type Endpoints struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	EndSessionEndpoint    string
	JWKSURI               string
}

// Resolver returns the provider endpoints.
type Resolver interface {
	Endpoints(ctx context.Context) (Endpoints, error)
}

// Static is a [Resolver] over fixed endpoints.
type Static Endpoints

// Endpoints returns s unchanged.
func (s Static) Endpoints(context.Context) (Endpoints, error) {
	return Endpoints(s), nil
}

// Option configures an [OIDCResolver].
type Option func(*OIDCResolver)

// WithHTTPClient sets the client used for the discovery fetch.
func WithHTTPClient(client *http.Client) Option {
	return func(r *OIDCResolver) {
		r.httpClient = client
	}
}

// WithIssuer accepts a discovery document whose issuer differs from the discovery
// URL, which some hosted identity providers publish.
func WithIssuer(issuer string) Option {
	return func(r *OIDCResolver) {
		r.issuerOverride = issuer
	}
}

// OIDCResolver is a memoizing [Resolver] backed by OIDC discovery.
type OIDCResolver struct {
	issuer         string
	issuerOverride string
	httpClient     *http.Client

	mu       sync.Mutex
	resolved *Endpoints
}

// NewOIDCResolver validates discoveryURL and returns a resolver. No network call
// is made until the first [OIDCResolver.Endpoints].
func NewOIDCResolver(discoveryURL string, opts ...Option) (*OIDCResolver, error) {
	u, err := url.Parse(discoveryURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid discovery url %q", discoveryURL)
	}

	r := &OIDCResolver{
		issuer: strings.TrimSuffix(strings.TrimSuffix(discoveryURL, wellKnownSuffix), "/"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Endpoints returns the memoized endpoints, fetching them on first use.
// Concurrent first callers share one fetch.
func (r *OIDCResolver) Endpoints(ctx context.Context) (Endpoints, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != nil {
		return *r.resolved, nil
	}

	endpoints, err := r.fetch(ctx)
	if err != nil {
		return Endpoints{}, err
	}
	r.resolved = &endpoints
	return endpoints, nil
}

type providerMetadata struct {
	Issuer        string `json:"issuer"`
	Authorization string `json:"authorization_endpoint"`
	Token         string `json:"token_endpoint"`
	EndSession    string `json:"end_session_endpoint"`
	JwksURI       string `json:"jwks_uri"`
}

func (r *OIDCResolver) fetch(ctx context.Context) (Endpoints, error) {
	if r.httpClient != nil {
		ctx = oidc.ClientContext(ctx, r.httpClient)
	}
	if r.issuerOverride != "" {
		ctx = oidc.InsecureIssuerURLContext(ctx, r.issuerOverride)
	}

	provider, err := oidc.NewProvider(ctx, r.issuer)
	if err != nil {
		return Endpoints{}, fmt.Errorf("%w: %v", ErrDiscoveryFailed, err)
	}

	var meta providerMetadata
	if err := provider.Claims(&meta); err != nil {
		return Endpoints{}, fmt.Errorf("%w: invalid metadata: %v", ErrDiscoveryFailed, err)
	}

	missing := []string{}
	if meta.Authorization == "" {
		missing = append(missing, "authorization_endpoint")
	}
	if meta.Token == "" {
		missing = append(missing, "token_endpoint")
	}
	if len(missing) > 0 {
		return Endpoints{}, fmt.Errorf("%w: missing %s", ErrDiscoveryIncomplete, strings.Join(missing, ", "))
	}

	issuer := meta.Issuer
	if r.issuerOverride != "" {
		issuer = r.issuerOverride
	}

	return Endpoints{
		Issuer:                issuer,
		AuthorizationEndpoint: meta.Authorization,
		TokenEndpoint:         meta.Token,
		EndSessionEndpoint:    meta.EndSession,
		JWKSURI:               meta.JwksURI,
	}, nil
}
