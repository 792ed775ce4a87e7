// Package identity defines the persisted user record and the [Store] contract
// used by the authentication engine.
//
// Adapters live in sub-packages: memstore (process memory), redisstore
// (Redis hashes with Lua-scripted atomic updates) and pgstore (PostgreSQL via
// pgx). All adapters report missing records as [ErrNotFound] and uniqueness
// conflicts as [ErrDuplicate]; every other error is a storage failure.
//
// # What this package must NOT do
//
//   - Interpret tokens or credentials.
//   - Import the engine or any transport package.
package identity
