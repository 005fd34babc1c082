// Package goGate provides the request-time session authentication gate for
// applications that delegate sign-in to an OAuth2/OIDC provider.
//
// On every request to a protected route the [Gate] reads the server-side session
// record, refreshes an expiring access token with the stored refresh token, and
// yields one [Decision]: proceed with credentials, proceed anonymously, or redirect
// to login. Gate methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goGate is the public surface. It exposes [Gate], [Builder], [Config], [Decision]
// and [AuthMode]. Flow orchestration lives in internal/flows, record persistence in
// session, the token endpoint exchange in refresh, and provider discovery in discovery.
//
// # What this package must NOT do
//
//   - Return refresh errors to route handlers; they become Deny or Anonymous decisions.
//   - Retry a refresh-token grant.
//   - Fetch the discovery document per request.
//   - Log token values.
//
// # Concurrency
//
// Concurrent refreshes of one session id inside a process are coalesced into a
// single token endpoint call. Processes sharing a Redis store do not coordinate;
// a second process refreshing the same session with a rotated refresh token will
// fail and clear that session.
package goGate
