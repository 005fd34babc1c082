package test

import (
	"context"
	"net/http"
	"testing"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/login"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/session"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goGate.New
	_ = goGate.LoadConfigFromEnv

	var _ *goGate.Gate
	var _ goGate.Config
	var _ goGate.Decision
	var _ goGate.Request
	var _ goGate.Refresher
	var _ goGate.AuditSink
	var _ session.Store = (*session.RedisStore)(nil)
	var _ session.Store = (*session.MemoryStore)(nil)
	var _ middleware.Authenticator = (*goGate.Gate)(nil)
	var _ login.Gate = (*goGate.Gate)(nil)

	var _ error = goGate.ErrInvalidConfig
	var _ error = goGate.ErrNoSession
	var _ error = goGate.ErrSessionIDRequired
	var _ error = goGate.ErrGateClosed

	var _ func(middleware.Authenticator, goGate.AuthMode, ...middleware.GuardOption) func(http.Handler) http.Handler = middleware.Guard

	var _ func(*goGate.Gate, context.Context, goGate.Request) goGate.Decision = (*goGate.Gate).Authenticate
	var _ func(*goGate.Gate, context.Context, string, *session.Record) error = (*goGate.Gate).CompleteLogin
	var _ func(*goGate.Gate, context.Context, string) (string, error) = (*goGate.Gate).Logout
}
