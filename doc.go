// Package tokenauth provides a dual-token authentication engine: short-lived
// access tokens proving identity per request, long-lived refresh tokens for
// minting new access tokens, and mass revocation through a per-identity
// revocation counter.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tokenauth is the public surface. It exposes [Engine], [Builder], [Config], the typed
// flow results and sentinel errors. Token encoding lives in jwt/, credential hashing in
// password/, persistence behind identity.Store. Rate limiting, audit dispatch and metric
// storage live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or credential hashes in its public API.
//   - Return the reason a token was rejected. The gate, Refresh and CurrentIdentity
//     collapse every failure to ErrUnauthenticated or nil.
//   - Import any sub-package that re-imports tokenauth (no import cycles).
//
// # Performance contract
//
// Validation is the hot path. In ModeStateless it performs no I/O. In ModeStrict
// (the default) it performs exactly one identity store read, bounded by
// Config.Store.OperationTimeout. Login performs one store read and never writes;
// Revoke performs one atomic store increment.
package tokenauth
