package goGate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGate/discovery"
	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/flows"
	"github.com/MrEthical07/goGate/redirect"
	"github.com/MrEthical07/goGate/refresh"
	"github.com/MrEthical07/goGate/session"
	"golang.org/x/sync/singleflight"
)

var errNoEndSessionEndpoint = errors.New("provider has no end_session_endpoint")

// Gate decides, per request, whether a session is authenticated, renews
// expired access tokens through the refresh-token grant and clears sessions
// that can no longer be renewed.
//
// Gate instances are built by [Builder] and are safe for concurrent use.
type Gate struct {
	config    Config
	store     session.Store
	resolver  discovery.Resolver
	refresher Refresher
	redirects redirect.Builder
	flights   singleflight.Group
	metrics   *Metrics
	audit     *audit.Dispatcher
	logger    *slog.Logger
	now       func() time.Time
	flows     flows.Service
	closed    atomic.Bool
	// stopSweep stops the expiry sweeper of a memory store the gate created.
	stopSweep func()
}

// recordStore adapts a session.Store to the typed record operations the flows use.
type recordStore struct {
	store session.Store
}

func (s recordStore) LoadRecord(ctx context.Context, sessionID string) (*session.Record, error) {
	return session.LoadRecord(ctx, s.store, sessionID)
}

func (s recordStore) SaveRecord(ctx context.Context, sessionID string, rec *session.Record) error {
	return session.SaveRecord(ctx, s.store, sessionID, rec)
}

func (s recordStore) ClearRecord(ctx context.Context, sessionID string) error {
	return session.ClearRecord(ctx, s.store, sessionID)
}

func (s recordStore) SaveRedirectPath(ctx context.Context, sessionID, path string) error {
	return session.SaveRedirectPath(ctx, s.store, sessionID, path)
}

func (g *Gate) initFlows() {
	records := recordStore{store: g.store}
	buffer := g.config.Refresh.Buffer()

	g.flows = flows.New(flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			Store:         records,
			Refresh:       g.refreshSession,
			Now:           g.now,
			Buffer:        buffer,
			LoginRedirect: g.redirects.Build,
			Warn:          g.logger.Warn,
		},
		Refresh: flows.RefreshSessionDeps{
			Store:   records,
			Refresh: g.exchange,
			Now:     g.now,
			Buffer:  buffer,
			Recheck: g.config.Refresh.SingleFlight,
		},
		Login: flows.LoginDeps{
			Store: records,
		},
		Logout: flows.LogoutDeps{
			Store:         records,
			EndSessionURL: g.endSessionURL,
			FallbackURL:   session.DefaultRedirectPath,
		},
	})
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate never fails: token endpoint and store errors are absorbed into
// an Anonymous or Deny decision. A valid record is returned without any store
// write. When req.TraceID is empty the trace id on ctx is used.
func (g *Gate) Authenticate(ctx context.Context, req Request) Decision {
	start := time.Now()

	traceID := req.TraceID
	if traceID == "" {
		traceID = TraceIDFromContext(ctx)
	} else {
		ctx = WithTraceID(ctx, traceID)
	}

	res := g.flows.Authenticate(ctx, flows.AuthenticateInput{
		SessionID: req.SessionID,
		Required:  req.Mode == ModeRequired,
		URL:       req.URL,
		TraceID:   traceID,
	})
	g.observeAuthenticate(ctx, req, traceID, res)
	g.metrics.Observe(MetricAuthenticateLatency, time.Since(start))

	switch res.Outcome {
	case flows.OutcomeAuthenticated:
		g.metricInc(MetricGateAuthenticated)
		return Authenticated(res.Record)
	case flows.OutcomeDeny:
		g.metricInc(MetricGateDenied)
		return Deny(res.RedirectURL)
	default:
		g.metricInc(MetricGateAnonymous)
		return Anonymous()
	}
}

func (g *Gate) observeAuthenticate(ctx context.Context, req Request, traceID string, res flows.AuthenticateResult) {
	sid := fingerprint(req.SessionID)

	if res.ClearReason == flows.ClearReasonCorrupt {
		g.metricInc(MetricSessionCorrupt)
		g.logger.WarnContext(ctx, "goGate: discarded unreadable session record", "session", sid)
	}
	if res.Coalesced {
		g.metricInc(MetricRefreshCoalesced)
	}

	// Followers of a shared refresh repeat neither the audit trail nor the
	// clear accounting; the leader already did.
	leader := !res.Coalesced

	if res.Refreshed && leader {
		g.logger.InfoContext(ctx, "goGate: access token refreshed", "session", sid, "subject_id", res.SubjectID)
		g.emitAudit(ctx, audit.RefreshSucceeded(res.SubjectID, traceID))
	}
	switch {
	case res.RefreshErr == nil || !leader:
	case errors.Is(res.RefreshErr, flows.ErrSessionEnded):
		g.logger.InfoContext(ctx, "goGate: session ended during refresh", "session", sid)
	default:
		kind := refresh.Kind(res.RefreshErr)
		g.logger.WarnContext(ctx, "goGate: token refresh failed", "session", sid, "subject_id", res.SubjectID, "kind", kind, "error", res.RefreshErr)
		g.emitAudit(ctx, audit.RefreshFailed(res.SubjectID, traceID, kind))
	}
	if res.Cleared && (leader || res.ClearReason != flows.ClearReasonRefreshFailed) {
		g.metricInc(MetricSessionCleared)
		g.logger.InfoContext(ctx, "goGate: session record cleared", "session", sid, "reason", string(res.ClearReason))
		g.emitAudit(ctx, audit.SessionCleared(res.SubjectID, traceID, string(res.ClearReason)))
	}
	if res.StoreErr != nil {
		g.metricInc(MetricStoreError)
		g.logger.ErrorContext(ctx, "goGate: session store error", "session", sid, "mode", req.Mode.String(), "error", res.StoreErr)
	}
}

// refreshSession runs the refresh flow, coalescing concurrent calls for the
// same session id when single-flight is enabled.
func (g *Gate) refreshSession(ctx context.Context, sessionID string, observed *session.Record, traceID string) (flows.RefreshSessionResult, bool, error) {
	if !g.config.Refresh.SingleFlight {
		res, err := g.flows.RefreshSession(ctx, sessionID, observed, traceID)
		return res, false, err
	}

	// The exchange must not be abandoned because the leading request went away;
	// followers depend on it. The refresh client bounds it with its own timeout.
	flightCtx := context.WithoutCancel(ctx)

	leader := false
	v, err, _ := g.flights.Do(sessionID, func() (any, error) {
		leader = true
		return g.flows.RefreshSession(flightCtx, sessionID, observed, traceID)
	})
	res, _ := v.(flows.RefreshSessionResult)
	if leader {
		return res, false, err
	}

	res.Record = res.Record.Clone()
	res.WriteErr = nil
	return res, true, err
}

// exchange calls the token endpoint and records refresh metrics.
func (g *Gate) exchange(ctx context.Context, refreshToken, traceID string) (*refresh.Tokens, error) {
	g.metricInc(MetricRefreshAttempt)
	start := time.Now()
	tokens, err := g.refresher.Refresh(ctx, refreshToken, traceID)
	g.metrics.Observe(MetricRefreshLatency, time.Since(start))
	if err != nil {
		g.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, refresh.ErrTransport):
			g.metricInc(MetricRefreshTransportError)
		case errors.Is(err, refresh.ErrRejected):
			g.metricInc(MetricRefreshRejected)
		case errors.Is(err, refresh.ErrMalformedResponse):
			g.metricInc(MetricRefreshMalformed)
		}
		return nil, err
	}
	g.metricInc(MetricRefreshSuccess)
	return tokens, nil
}

// CompleteLogin describes the completelogin operation and its observable behavior.
//
// CompleteLogin validates rec and stores it as the session's auth record,
// replacing any previous record. It is the only way a record is created.
func (g *Gate) CompleteLogin(ctx context.Context, sessionID string, rec *session.Record) error {
	if g.closed.Load() {
		return ErrGateClosed
	}
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	if err := g.flows.CompleteLogin(ctx, sessionID, rec); err != nil {
		if !errors.Is(err, session.ErrRecordInvalid) {
			g.metricInc(MetricStoreError)
		}
		g.logger.ErrorContext(ctx, "goGate: storing login session failed", "session", fingerprint(sessionID), "error", err)
		return err
	}

	g.metricInc(MetricSessionCreated)
	g.logger.InfoContext(ctx, "goGate: session created", "session", fingerprint(sessionID), "subject_id", rec.SubjectID)
	g.emitAudit(ctx, audit.Login(rec.SubjectID, TraceIDFromContext(ctx)))
	return nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout clears the auth record and returns the provider end-session URL with
// App.BaseURL as post_logout_redirect_uri. When the provider exposes no
// end-session endpoint, "/" is returned.
func (g *Gate) Logout(ctx context.Context, sessionID string) (string, error) {
	res, err := g.flows.Logout(ctx, sessionID)
	if err != nil {
		g.metricInc(MetricStoreError)
		g.logger.ErrorContext(ctx, "goGate: logout failed", "session", fingerprint(sessionID), "error", err)
		return "", err
	}
	if res.EndSessionErr != nil {
		g.logger.WarnContext(ctx, "goGate: end-session endpoint unavailable", "error", res.EndSessionErr)
	}

	g.metricInc(MetricLogout)
	if res.HadSession {
		g.emitAudit(ctx, audit.Logout(res.SubjectID, TraceIDFromContext(ctx)))
	}
	return res.RedirectURL, nil
}

func (g *Gate) endSessionURL(ctx context.Context) (string, error) {
	endpoints, err := g.resolver.Endpoints(ctx)
	if err != nil {
		return "", err
	}
	if endpoints.EndSessionEndpoint == "" {
		return "", errNoEndSessionEndpoint
	}
	return redirect.EndSession(endpoints.EndSessionEndpoint, g.config.App.BaseURL), nil
}

// TakeRedirectPath returns the post-login path saved by a denied request and
// clears it. It always yields a local path; "/" when nothing usable was saved.
func (g *Gate) TakeRedirectPath(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return session.DefaultRedirectPath
	}
	path, err := session.TakeRedirectPath(ctx, g.store, sessionID)
	if err != nil {
		g.metricInc(MetricStoreError)
		g.logger.ErrorContext(ctx, "goGate: reading redirect path failed", "session", fingerprint(sessionID), "error", err)
	}
	return redirect.SafeReturnPath(path)
}

// Credentials returns the stored record without refreshing it.
func (g *Gate) Credentials(ctx context.Context, sessionID string) (*session.Record, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	rec, err := session.LoadRecord(ctx, g.store, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrNoSession
	}
	return rec, err
}

// LoginURL returns the login redirect for original, including the identity hint.
func (g *Gate) LoginURL(original *url.URL) string {
	return g.redirects.Build(original)
}

// Store returns the session store the Gate reads and writes.
func (g *Gate) Store() session.Store { return g.store }

// Resolver returns the provider endpoint resolver shared with the login handler.
func (g *Gate) Resolver() discovery.Resolver { return g.resolver }

// Config returns a copy of the configuration the Gate was built with.
func (g *Gate) Config() Config { return g.config }

// Logger returns the Gate's logger.
func (g *Gate) Logger() *slog.Logger { return g.logger }

// MetricsSnapshot returns a point-in-time copy of the gate counters.
func (g *Gate) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (g *Gate) AuditDropped() uint64 {
	if g == nil || g.audit == nil {
		return 0
	}
	return g.audit.Dropped()
}

// AuditStats returns delivery counters for the audit pipeline, including
// per-type counts and refresh failures grouped by kind.
func (g *Gate) AuditStats() AuditStats {
	if g == nil {
		return AuditStats{}
	}
	return g.audit.Stats()
}

// Close describes the close operation and its observable behavior.
//
// Close flushes pending audit events, stops the memory store sweeper the gate
// started and rejects further logins. It is idempotent.
func (g *Gate) Close() {
	if g == nil || !g.closed.CompareAndSwap(false, true) {
		return
	}
	if g.audit != nil {
		g.audit.Close()
	}
	if g.stopSweep != nil {
		g.stopSweep()
	}
}

func (g *Gate) metricInc(id MetricID) {
	if g == nil || g.metrics == nil {
		return
	}
	g.metrics.Inc(id)
}

func (g *Gate) emitAudit(ctx context.Context, event AuditEvent) {
	if g == nil || g.audit == nil {
		return
	}
	g.audit.Emit(ctx, event)
}

// fingerprint returns a short stable digest of a session id for log lines.
func fingerprint(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:4])
}
