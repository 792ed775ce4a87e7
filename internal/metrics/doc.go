// Package metrics provides lock-free counters and a latency histogram for
// engine observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The validate-latency histogram uses
// 8 fixed buckets (<=5ms ... +Inf). Both are allocation-free on the write path.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Export (Prometheus
// text, OTel) lives in metrics/export/ and reads Snapshot values.
package metrics
