package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGate/refresh"
	"github.com/MrEthical07/goGate/session"
)

// ErrSessionEnded is returned when the record disappeared between the gate's
// read and the refresh, for example through a concurrent logout.
var ErrSessionEnded = errors.New("session ended before refresh")

// RefreshSessionResult carries the record the caller should authenticate with.
type RefreshSessionResult struct {
	Record *session.Record
	// Reused is set when the stored record had already been refreshed by an
	// earlier flight and no token call was made.
	Reused bool
	// WriteErr is a failure persisting the refreshed record. The refresh itself
	// still succeeded.
	WriteErr error
}

type RefreshSessionStore interface {
	LoadRecord(ctx context.Context, sessionID string) (*session.Record, error)
	SaveRecord(ctx context.Context, sessionID string, rec *session.Record) error
}

// RefreshSessionDeps captures refresh flow dependencies.
type RefreshSessionDeps struct {
	Store   RefreshSessionStore
	Refresh func(ctx context.Context, refreshToken, traceID string) (*refresh.Tokens, error)
	Now     func() time.Time
	Buffer  time.Duration
	// Recheck re-reads the stored record before calling the token endpoint.
	Recheck bool
}

// RunRefreshSession exchanges the refresh token of observed and persists the
// result. When the token response omits refresh_token the previous one is kept.
func RunRefreshSession(ctx context.Context, sessionID string, observed *session.Record, traceID string, deps RefreshSessionDeps) (RefreshSessionResult, error) {
	current := observed
	if deps.Recheck {
		stored, err := deps.Store.LoadRecord(ctx, sessionID)
		switch {
		case err == nil:
			if stored.AccessToken != observed.AccessToken && !stored.NeedsRefresh(deps.Now(), deps.Buffer) {
				return RefreshSessionResult{Record: stored, Reused: true}, nil
			}
			if stored.HasRefreshToken() {
				current = stored
			}
		case errors.Is(err, session.ErrNotFound):
			return RefreshSessionResult{}, ErrSessionEnded
		case errors.Is(err, session.ErrRecordCorrupt), errors.Is(err, session.ErrRecordInvalid):
			return RefreshSessionResult{}, fmt.Errorf("recheck: %w", err)
		default:
			// Backend read failures fall back to the observed record.
		}
	}

	tokens, err := deps.Refresh(ctx, current.RefreshToken, traceID)
	if err != nil {
		return RefreshSessionResult{}, err
	}

	refreshToken := tokens.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}
	next := current.WithTokens(tokens.AccessToken, refreshToken, tokens.ExpiresAt(deps.Now()))

	res := RefreshSessionResult{Record: next}
	if err := deps.Store.SaveRecord(ctx, sessionID, next); err != nil {
		res.WriteErr = err
	}
	return res, nil
}
