package flows

import (
	"context"

	"github.com/MrEthical07/goGate/session"
)

// Service is the centralized flow runner built once by the root Gate.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.Store != nil && s.deps.Authenticate.Refresh != nil
}

func (s Service) Authenticate(ctx context.Context, in AuthenticateInput) AuthenticateResult {
	return RunAuthenticate(ctx, in, s.deps.Authenticate)
}

func (s Service) RefreshSession(ctx context.Context, sessionID string, observed *session.Record, traceID string) (RefreshSessionResult, error) {
	return RunRefreshSession(ctx, sessionID, observed, traceID, s.deps.Refresh)
}

func (s Service) CompleteLogin(ctx context.Context, sessionID string, rec *session.Record) error {
	return RunCompleteLogin(ctx, sessionID, rec, s.deps.Login)
}

func (s Service) Logout(ctx context.Context, sessionID string) (LogoutResult, error) {
	return RunLogout(ctx, sessionID, s.deps.Logout)
}
