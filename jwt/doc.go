// Package jwt reads identity claims from the ID token (or, for providers that
// put identity on the access token, the access token) returned by the
// provider's token endpoint.
//
// Tokens are decoded without signature verification. They are only ever taken
// from a direct TLS response of the configured token endpoint, never from a
// browser-supplied value.
package jwt
