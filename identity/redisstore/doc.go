// Package redisstore implements identity.Store on Redis.
//
// # Atomicity
//
// Insert and IncrementRevocationCounter are Lua scripts, so uniqueness of the
// email index and the counter increment are each a single server-side step.
// Concurrent revocations never lose an increment.
//
// # Key layout
//
// All keys share one prefix (default "ta"). Deployments on Redis Cluster should
// choose a prefix wrapped in a hash tag, for example "{ta}", so that both keys
// touched by Insert land in the same slot.
package redisstore
