// Package jwt issues and verifies the access and refresh tokens used by tokenauth.
//
// Both kinds are HS256 JWTs carrying the subject id and the subject's revocation
// counter at issuance time. Each kind has its own secret and TTL, so a refresh token
// can never be presented where an access token is expected (and vice versa).
//
// Verification is pure: it checks signature, expiry and structure only. Comparing the
// embedded counter with the live counter is the caller's job (see tokenauth.Engine).
package jwt
