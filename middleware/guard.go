package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/logctx"
	"github.com/MrEthical07/goGate/session"
)

// DefaultTraceHeader is the request header read for the trace id unless
// [WithTraceHeader] says otherwise.
const DefaultTraceHeader = "x-cdp-request-id"

// Authenticator is the part of [*goGate.Gate] the guard needs.
type Authenticator interface {
	Authenticate(ctx context.Context, req goGate.Request) goGate.Decision
}

type decisionContextKey struct{}

// DecisionFromContext returns the decision made by [Guard] for this request.
func DecisionFromContext(ctx context.Context) (goGate.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(goGate.Decision)
	return d, ok
}

// CredentialsFromContext returns the authenticated record, if any. Anonymous
// requests yield (nil, false).
func CredentialsFromContext(ctx context.Context) (*session.Record, bool) {
	d, ok := DecisionFromContext(ctx)
	if !ok || !d.IsAuthenticated() {
		return nil, false
	}
	return d.Credentials, true
}

type guardOptions struct {
	traceHeader string
}

// GuardOption configures [Guard].
type GuardOption func(*guardOptions)

// WithTraceHeader sets the request header carrying the trace id.
func WithTraceHeader(name string) GuardOption {
	return func(o *guardOptions) {
		if name != "" {
			o.traceHeader = name
		}
	}
}

// Guard authenticates each request with mode. Deny is answered with a 302 to
// the login redirect; any other decision is attached to the context and the
// request continues.
func Guard(gate Authenticator, mode goGate.AuthMode, opts ...GuardOption) func(http.Handler) http.Handler {
	o := guardOptions{traceHeader: DefaultTraceHeader}
	for _, opt := range opts {
		opt(&o)
	}

	missing := isNil(gate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if missing {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			traceID := r.Header.Get(o.traceHeader)
			ctx := goGate.WithTraceID(r.Context(), traceID)
			ctx = logctx.WithAttrs(ctx,
				slog.String("path", r.URL.Path),
				slog.String("mode", mode.String()),
			)

			d := gate.Authenticate(ctx, goGate.Request{
				SessionID: SessionIDFromContext(ctx),
				Mode:      mode,
				URL:       r.URL,
				TraceID:   traceID,
			})
			if d.IsDenied() {
				w.Header().Set("Cache-Control", "no-store")
				http.Redirect(w, r, d.RedirectURL, http.StatusFound)
				return
			}

			ctx = context.WithValue(ctx, decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isNil reports whether a is nil or wraps a nil pointer, such as a
// (*goGate.Gate)(nil) passed where an Authenticator is expected.
func isNil(a Authenticator) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// RequireAuth redirects unauthenticated requests to login.
func RequireAuth(gate Authenticator, opts ...GuardOption) func(http.Handler) http.Handler {
	return Guard(gate, goGate.ModeRequired, opts...)
}

// TryAuth authenticates when possible and lets anonymous requests through.
func TryAuth(gate Authenticator, opts ...GuardOption) func(http.Handler) http.Handler {
	return Guard(gate, goGate.ModeTry, opts...)
}

// OptionalAuth behaves like TryAuth.
func OptionalAuth(gate Authenticator, opts ...GuardOption) func(http.Handler) http.Handler {
	return Guard(gate, goGate.ModeOptional, opts...)
}
