// Package login serves the authorization-code round trip that creates
// sessions: the login redirect, the provider callback and logout.
//
// The handlers mount on a chi router behind [middleware.Sessions]; the session
// id comes from the request context. PKCE (S256) and a one-time state value
// protect the callback.
package login
