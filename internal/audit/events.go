package audit

// Event types emitted by the gate.
const (
	EventLogin          = "login"
	EventLogout         = "logout"
	EventRefreshSuccess = "refresh_success"
	EventRefreshFailure = "refresh_failure"
	EventSessionCleared = "session_cleared"
)

// Metadata keys.
const (
	// MetaKind classifies a failed refresh: transport, rejected, malformed,
	// endpoint_unavailable or unknown.
	MetaKind = "kind"
	// MetaReason says why a session record was cleared.
	MetaReason = "reason"
)

// Login records a session created by the login callback.
func Login(subjectID, traceID string) Event {
	return Event{EventType: EventLogin, SubjectID: subjectID, TraceID: traceID, Success: true}
}

// Logout records a session ended by the user.
func Logout(subjectID, traceID string) Event {
	return Event{EventType: EventLogout, SubjectID: subjectID, TraceID: traceID, Success: true}
}

// RefreshSucceeded records a renewed access token.
func RefreshSucceeded(subjectID, traceID string) Event {
	return Event{EventType: EventRefreshSuccess, SubjectID: subjectID, TraceID: traceID, Success: true}
}

// RefreshFailed records a failed token exchange. kind is carried as both the
// event error and Metadata[MetaKind]; the underlying error text is not, since
// provider responses may echo request parameters.
func RefreshFailed(subjectID, traceID, kind string) Event {
	return Event{
		EventType: EventRefreshFailure,
		SubjectID: subjectID,
		TraceID:   traceID,
		Error:     kind,
		Metadata:  map[string]string{MetaKind: kind},
	}
}

// SessionCleared records removal of a session's auth record.
func SessionCleared(subjectID, traceID, reason string) Event {
	return Event{
		EventType: EventSessionCleared,
		SubjectID: subjectID,
		TraceID:   traceID,
		Success:   true,
		Metadata:  map[string]string{MetaReason: reason},
	}
}

// credentialKeys are metadata keys that name bearer material. They are
// stripped before an event is queued.
var credentialKeys = map[string]struct{}{
	"session":       {},
	"session_id":    {},
	"sid":           {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"code":          {},
	"code_verifier": {},
	"state":         {},
}

func scrub(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return metadata
	}
	var out map[string]string
	for k, v := range metadata {
		if _, ok := credentialKeys[k]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(metadata))
		}
		out[k] = v
	}
	return out
}

// failureKind returns the classification of a failed event.
func failureKind(event Event) string {
	if kind := event.Metadata[MetaKind]; kind != "" {
		return kind
	}
	if event.Error != "" {
		return event.Error
	}
	return "unknown"
}
