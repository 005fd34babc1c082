package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// DefaultCookieName is used when CookieConfig.Name is empty.
const DefaultCookieName = "session"

// CookieConfig configures the session-id cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
	// NewID mints session ids. Defaults to random v4 UUIDs.
	NewID func() string
}

type sessionIDContextKey struct{}

// WithSessionID returns ctx carrying sessionID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

// SessionIDFromContext returns the session id attached by [Sessions].
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDContextKey{}).(string)
	return sid
}

// Sessions attaches the request's session id to the context, minting one and
// setting the cookie when the request has none. Cookie values that are not
// canonical UUIDs are replaced.
func Sessions(cfg CookieConfig) func(http.Handler) http.Handler {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(cfg.Name); err == nil && validSessionID(c.Value) {
				sid = c.Value
			}
			if sid == "" {
				sid = cfg.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.Name,
					Value:    sid,
					Path:     cfg.Path,
					HttpOnly: true,
					Secure:   cfg.Secure,
					// Lax keeps the cookie on the provider's top-level redirect back to the callback.
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

func validSessionID(v string) bool {
	if len(v) != 36 {
		return false
	}
	_, err := uuid.Parse(v)
	return err == nil
}
