// Package middleware adapts the goGate Gate to net/http.
//
// # Middleware
//
//   - [Sessions] reads or mints the opaque session-id cookie.
//   - [Guard] runs Gate.Authenticate for a route's [goGate.AuthMode].
//   - [RequireAuth], [TryAuth], [OptionalAuth] are Guard shorthands.
//
// A denied request is answered with 302 Found to the login redirect. Otherwise
// the decision is attached to the request context; read it with
// [DecisionFromContext] or [CredentialsFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Gate calls. It does NOT decide
// authentication itself; every decision comes from Gate.Authenticate.
//
// # What this package must NOT do
//
//   - Read or write session records (the Gate owns the store).
//   - Call the token endpoint.
//   - Turn Anonymous into a rejection; handlers decide what anonymous users see.
package middleware
