// ABOUTME: Package documentation for request authentication.
// ABOUTME: Explains token verification and how handlers learn the caller.

// Package auth authenticates API requests. Clients present an HS256-signed
// JWT whose "sub" claim carries their account address; the fiber middleware
// verifies the token and exposes the normalized account to handlers via
// request locals. Websocket clients may pass the token as a query parameter
// when they cannot set headers.
package auth
