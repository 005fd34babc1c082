// Package refresh implements the OAuth2 refresh-token grant (RFC 6749 section 6)
// against the provider token endpoint.
//
// # Failure kinds
//
// [Client.Refresh] fails with exactly one of [ErrTransport], [ErrRejected],
// [ErrMalformedResponse] or [ErrEndpointUnavailable]; use errors.Is / errors.As
// to tell them apart. Callers in this module treat them identically.
//
// # Architecture boundaries
//
// This package owns the wire exchange. It does not read or write sessions and it
// never retries: a refresh token may be single-use, and a second attempt after an
// ambiguous failure can burn it.
//
// # What this package must NOT do
//
//   - Access Redis or any session store.
//   - Import goGate, session, or middleware.
//   - Log token values.
package refresh
