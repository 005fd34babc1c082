// Package discovery resolves the OAuth2/OIDC provider endpoints used by the gate,
// the refresh client and the login handlers.
//
// # Architecture boundaries
//
// A [Resolver] is constructed once at process start and injected into every consumer.
// [OIDCResolver] fetches the discovery document on first use and memoizes the result
// for the lifetime of the process; a failed fetch is not memoized, so the next caller
// retries. [Static] serves fixed endpoints.
//
// # What this package must NOT do
//
//   - Fetch the discovery document per request.
//   - Verify tokens or hold client credentials.
package discovery
