// Package middleware exposes net/http adapters over tokenauth.Engine: bearer
// guards for strict and stateless routes, and helpers for the HttpOnly cookie
// that carries the refresh token.
//
// # Guards
//
//   - [Guard]: uses the given route mode; ModeInherit follows the Engine config.
//   - [RequireStateless]: signature and expiry only, no store read.
//   - [RequireStrict]: also compares the token's revocation counter with the store.
//
// Each guard reads the Authorization header, calls Engine.Validate, and injects
// the request identity into the request context.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Tell the client why a token was rejected.
//   - Accept a refresh token from the Authorization header.
package middleware
