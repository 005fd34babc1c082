package flows

import (
	"context"

	"github.com/MrEthical07/goGate/session"
)

type LoginSessionStore interface {
	SaveRecord(ctx context.Context, sessionID string, rec *session.Record) error
}

// LoginDeps captures login completion dependencies.
type LoginDeps struct {
	Store LoginSessionStore
}

// RunCompleteLogin validates rec and stores it as the session's auth record,
// replacing any previous one. Records whose access token is already past
// expiry are accepted; the next gate evaluation refreshes them.
func RunCompleteLogin(ctx context.Context, sessionID string, rec *session.Record, deps LoginDeps) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return deps.Store.SaveRecord(ctx, sessionID, rec)
}
