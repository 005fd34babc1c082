package refresh

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the token endpoint could not be reached.
	ErrTransport = errors.New("refresh: transport failure")
	// ErrRejected is returned for non-2xx token endpoint responses.
	ErrRejected = errors.New("refresh: token endpoint rejected request")
	// ErrMalformedResponse is returned for 2xx responses missing required fields.
	ErrMalformedResponse = errors.New("refresh: malformed token response")
	// ErrEndpointUnavailable is returned when no token endpoint could be resolved.
	ErrEndpointUnavailable = errors.New("refresh: token endpoint unavailable")
)

// TransportError carries the network-level cause of a failed exchange.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: %v", ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RejectedError carries the token endpoint's non-2xx response for diagnostics.
// Body is the raw response body and never contains the submitted refresh token.
type RejectedError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v: %d %s: %s", ErrRejected, e.StatusCode, e.Status, e.Body)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// MalformedResponseError describes what was wrong with a 2xx response.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedResponse, e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// Kind returns a short label for err suitable for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrEndpointUnavailable):
		return "endpoint_unavailable"
	default:
		return "unknown"
	}
}
