package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGate/session"
)

type LogoutSessionStore interface {
	LoadRecord(ctx context.Context, sessionID string) (*session.Record, error)
	ClearRecord(ctx context.Context, sessionID string) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store LogoutSessionStore
	// EndSessionURL builds the provider end-session redirect. An error falls
	// back to FallbackURL.
	EndSessionURL func(ctx context.Context) (string, error)
	FallbackURL   string
}

// LogoutResult describes a completed logout.
type LogoutResult struct {
	RedirectURL string
	SubjectID   string
	HadSession  bool
	// EndSessionErr is set when the provider end-session URL was unavailable.
	EndSessionErr error
}

// RunLogout clears the auth record and resolves the redirect target. Clearing a
// session that has no record, or an empty session id, is not an error.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) (LogoutResult, error) {
	var res LogoutResult
	if sessionID != "" {
		rec, err := deps.Store.LoadRecord(ctx, sessionID)
		switch {
		case err == nil:
			res.HadSession = true
			res.SubjectID = rec.SubjectID
		case errors.Is(err, session.ErrNotFound),
			errors.Is(err, session.ErrRecordCorrupt),
			errors.Is(err, session.ErrRecordInvalid):
		default:
			return res, err
		}

		if err := deps.Store.ClearRecord(ctx, sessionID); err != nil {
			return res, err
		}
	}

	res.RedirectURL = deps.FallbackURL
	if deps.EndSessionURL != nil {
		target, err := deps.EndSessionURL(ctx)
		if err != nil {
			res.EndSessionErr = err
		} else {
			res.RedirectURL = target
		}
	}
	return res, nil
}
