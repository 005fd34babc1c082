package flows

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/goGate/session"
)

// AuthenticateOutcome is the terminal state of one gate evaluation.
type AuthenticateOutcome int

const (
	OutcomeAuthenticated AuthenticateOutcome = iota
	OutcomeAnonymous
	OutcomeDeny
)

// ClearReason records why the auth record was removed.
type ClearReason string

const (
	ClearReasonNone           ClearReason = ""
	ClearReasonRefreshFailed  ClearReason = "refresh_failed"
	ClearReasonNoRefreshToken ClearReason = "no_refresh_token"
	ClearReasonCorrupt        ClearReason = "corrupt"
)

// AuthenticateInput is the per-request input. Required is the only view of the
// route mode this flow has.
type AuthenticateInput struct {
	SessionID string
	Required  bool
	URL       *url.URL
	TraceID   string
}

// AuthenticateResult describes the decision and every side effect taken.
type AuthenticateResult struct {
	Outcome     AuthenticateOutcome
	Record      *session.Record
	RedirectURL string

	Refreshed bool
	Coalesced bool
	Reused    bool

	Cleared     bool
	ClearReason ClearReason
	SubjectID   string

	RefreshErr error
	StoreErr   error
}

// AuthenticateStore is the subset of session persistence the gate flow uses.
type AuthenticateStore interface {
	LoadRecord(ctx context.Context, sessionID string) (*session.Record, error)
	ClearRecord(ctx context.Context, sessionID string) error
	SaveRedirectPath(ctx context.Context, sessionID, path string) error
}

// RefreshFunc refreshes the record observed for sessionID. coalesced reports
// whether the call shared another caller's in-flight refresh.
type RefreshFunc func(ctx context.Context, sessionID string, observed *session.Record, traceID string) (result RefreshSessionResult, coalesced bool, err error)

// AuthenticateDeps captures gate flow dependencies.
type AuthenticateDeps struct {
	Store         AuthenticateStore
	Refresh       RefreshFunc
	Now           func() time.Time
	Buffer        time.Duration
	LoginRedirect func(original *url.URL) string
	Warn          func(string, ...any)
}

// RunAuthenticate evaluates one request: read, decide, optionally refresh, then
// write or clear. It never returns an error; failures are reported on the result.
func RunAuthenticate(ctx context.Context, in AuthenticateInput, deps AuthenticateDeps) AuthenticateResult {
	var res AuthenticateResult
	if in.SessionID == "" {
		return noSession(ctx, in, deps, res, true)
	}

	rec, err := deps.Store.LoadRecord(ctx, in.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotFound):
		return noSession(ctx, in, deps, res, true)
	case errors.Is(err, session.ErrRecordCorrupt), errors.Is(err, session.ErrRecordInvalid):
		res = clearRecord(ctx, in, deps, res, ClearReasonCorrupt)
		return noSession(ctx, in, deps, res, true)
	default:
		res.StoreErr = err
		return noSession(ctx, in, deps, res, false)
	}

	res.SubjectID = rec.SubjectID
	if !rec.NeedsRefresh(deps.Now(), deps.Buffer) {
		res.Outcome = OutcomeAuthenticated
		res.Record = rec
		return res
	}

	if !rec.HasRefreshToken() {
		res = clearRecord(ctx, in, deps, res, ClearReasonNoRefreshToken)
		return noSession(ctx, in, deps, res, true)
	}

	refreshed, coalesced, err := deps.Refresh(ctx, in.SessionID, rec, in.TraceID)
	res.Coalesced = coalesced
	if err != nil {
		res.RefreshErr = err
		if errors.Is(err, ErrSessionEnded) {
			return noSession(ctx, in, deps, res, true)
		}
		res = clearRecord(ctx, in, deps, res, ClearReasonRefreshFailed)
		return noSession(ctx, in, deps, res, true)
	}

	res.Outcome = OutcomeAuthenticated
	res.Record = refreshed.Record
	res.Refreshed = !refreshed.Reused
	res.Reused = refreshed.Reused
	if refreshed.WriteErr != nil {
		res.StoreErr = refreshed.WriteErr
	}
	return res
}

func clearRecord(ctx context.Context, in AuthenticateInput, deps AuthenticateDeps, res AuthenticateResult, reason ClearReason) AuthenticateResult {
	res.ClearReason = reason
	if err := deps.Store.ClearRecord(ctx, in.SessionID); err != nil {
		if res.StoreErr == nil {
			res.StoreErr = err
		}
		if deps.Warn != nil {
			deps.Warn("goGate: clearing session record failed", "reason", string(reason))
		}
		return res
	}
	res.Cleared = true
	return res
}

// noSession is the single branch point on the route mode.
func noSession(ctx context.Context, in AuthenticateInput, deps AuthenticateDeps, res AuthenticateResult, saveRedirect bool) AuthenticateResult {
	res.Record = nil
	if !in.Required {
		res.Outcome = OutcomeAnonymous
		return res
	}

	if saveRedirect && in.SessionID != "" && in.URL != nil {
		if err := deps.Store.SaveRedirectPath(ctx, in.SessionID, in.URL.RequestURI()); err != nil && res.StoreErr == nil {
			res.StoreErr = err
		}
	}

	res.Outcome = OutcomeDeny
	res.RedirectURL = deps.LoginRedirect(in.URL)
	return res
}
