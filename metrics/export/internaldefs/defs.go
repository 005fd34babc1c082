package internaldefs

import (
	goGate "github.com/MrEthical07/goGate"
)

// CounterDef names one gate counter for exporters.
type CounterDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// HistogramDef names one gate latency histogram for exporters.
type HistogramDef struct {
	ID   goGate.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for [goGate.Gate.AuditDropped].
const (
	AuditDroppedName = "gogate_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// Audit relay counters, labelled by event type and by refresh failure kind.
const (
	AuditEventsName   = "gogate_audit_events_total"
	AuditEventsHelp   = "Audit events delivered to the sink, by type."
	AuditFailuresName = "gogate_audit_refresh_failures_total"
	AuditFailuresHelp = "Audited refresh failures, by failure kind."
)

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: goGate.MetricGateAuthenticated, Name: "gogate_authenticated_total", Help: "Requests that resolved to an authenticated session."},
	{ID: goGate.MetricGateAnonymous, Name: "gogate_anonymous_total", Help: "Requests let through without credentials."},
	{ID: goGate.MetricGateDenied, Name: "gogate_denied_total", Help: "Requests redirected to login."},
	{ID: goGate.MetricRefreshAttempt, Name: "gogate_refresh_attempt_total", Help: "Token endpoint refresh exchanges started."},
	{ID: goGate.MetricRefreshSuccess, Name: "gogate_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goGate.MetricRefreshFailure, Name: "gogate_refresh_failure_total", Help: "Failed token refreshes of any kind."},
	{ID: goGate.MetricRefreshTransportError, Name: "gogate_refresh_transport_error_total", Help: "Refreshes that never reached the token endpoint."},
	{ID: goGate.MetricRefreshRejected, Name: "gogate_refresh_rejected_total", Help: "Refreshes answered with a non-2xx status."},
	{ID: goGate.MetricRefreshMalformed, Name: "gogate_refresh_malformed_total", Help: "Refreshes answered with an unusable body."},
	{ID: goGate.MetricRefreshCoalesced, Name: "gogate_refresh_coalesced_total", Help: "Requests that shared a concurrent refresh."},
	{ID: goGate.MetricSessionCreated, Name: "gogate_session_created_total", Help: "Sessions created by the login callback."},
	{ID: goGate.MetricSessionCleared, Name: "gogate_session_cleared_total", Help: "Session records cleared after refresh became impossible."},
	{ID: goGate.MetricSessionCorrupt, Name: "gogate_session_corrupt_total", Help: "Stored session records that could not be decoded."},
	{ID: goGate.MetricStoreError, Name: "gogate_store_error_total", Help: "Session store failures."},
	{ID: goGate.MetricLogout, Name: "gogate_logout_total", Help: "Logouts."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goGate.MetricAuthenticateLatency, Name: "gogate_authenticate_latency_seconds", Help: "Gate decision latency."},
	{ID: goGate.MetricRefreshLatency, Name: "gogate_refresh_latency_seconds", Help: "Token endpoint exchange latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the gate's
// fixed buckets. The last bucket is +Inf.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bounds of HistogramBounds as numbers.
var HistogramUpperBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// NormalizeBuckets copies raw into a fixed eight-bucket array; missing buckets are zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
