package goGate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrEthical07/goGate/refresh"
	"github.com/MrEthical07/goGate/session"
)

// AuthMode is the per-route authentication policy.
//
// Try and Optional are distinct labels for the route layer; the Gate treats them
// identically.
type AuthMode int

const (
	// ModeRequired redirects callers without a usable session to login.
	ModeRequired AuthMode = iota
	// ModeTry lets callers without a usable session through anonymously.
	ModeTry
	// ModeOptional lets callers without a usable session through anonymously.
	ModeOptional
)

func (m AuthMode) String() string {
	switch m {
	case ModeRequired:
		return "required"
	case ModeTry:
		return "try"
	case ModeOptional:
		return "optional"
	default:
		return fmt.Sprintf("AuthMode(%d)", int(m))
	}
}

// ParseAuthMode parses "required", "try" or "optional".
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "required":
		return ModeRequired, nil
	case "try":
		return ModeTry, nil
	case "optional":
		return ModeOptional, nil
	default:
		return 0, fmt.Errorf("unknown auth mode %q", s)
	}
}

// DecisionKind enumerates the three gate outcomes.
type DecisionKind int

const (
	// DecisionAuthenticated attaches the session record as credentials.
	DecisionAuthenticated DecisionKind = iota
	// DecisionAnonymous lets the request proceed with empty credentials.
	DecisionAnonymous
	// DecisionDeny short-circuits the request with a redirect.
	DecisionDeny
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAuthenticated:
		return "authenticated"
	case DecisionAnonymous:
		return "anonymous"
	case DecisionDeny:
		return "deny"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is the per-request gate outcome. Credentials is set only for
// DecisionAuthenticated and RedirectURL only for DecisionDeny.
type Decision struct {
	Kind        DecisionKind
	Credentials *session.Record
	RedirectURL string
}

// Authenticated returns an authenticated decision for rec.
func Authenticated(rec *session.Record) Decision {
	return Decision{Kind: DecisionAuthenticated, Credentials: rec}
}

// Anonymous returns an anonymous decision.
func Anonymous() Decision {
	return Decision{Kind: DecisionAnonymous}
}

// Deny returns a redirect decision.
func Deny(redirectURL string) Decision {
	return Decision{Kind: DecisionDeny, RedirectURL: redirectURL}
}

// IsAuthenticated reports whether d carries credentials.
func (d Decision) IsAuthenticated() bool { return d.Kind == DecisionAuthenticated }

// IsDenied reports whether d redirects.
func (d Decision) IsDenied() bool { return d.Kind == DecisionDeny }

// Request is the gate input for one inbound request.
type Request struct {
	SessionID string
	Mode      AuthMode
	// URL is the originally requested URL; its path and query are preserved for
	// the post-login redirect and the identity hint.
	URL     *url.URL
	TraceID string
}

// Refresher exchanges a refresh token for new tokens. [*refresh.Client] implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken, traceID string) (*refresh.Tokens, error)
}
