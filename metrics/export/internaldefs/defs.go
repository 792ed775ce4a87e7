package internaldefs

import (
	"github.com/MrEthical07/tokenauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: tokenauth.MetricLoginSuccess, Name: "tokenauth_login_success_total", Help: "Successful login attempts."},
	{ID: tokenauth.MetricLoginFailure, Name: "tokenauth_login_failure_total", Help: "Login attempts rejected for bad credentials."},
	{ID: tokenauth.MetricLoginRateLimited, Name: "tokenauth_login_rate_limited_total", Help: "Login attempts rejected by throttling."},
	{ID: tokenauth.MetricLoginUnavailable, Name: "tokenauth_login_unavailable_total", Help: "Login attempts that failed on a backend error."},
	{ID: tokenauth.MetricRegisterSuccess, Name: "tokenauth_register_success_total", Help: "Identities created."},
	{ID: tokenauth.MetricRegisterDuplicate, Name: "tokenauth_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: tokenauth.MetricRegisterInvalid, Name: "tokenauth_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: tokenauth.MetricRegisterFailure, Name: "tokenauth_register_failure_total", Help: "Registrations that failed on a backend error."},
	{ID: tokenauth.MetricRevokeSuccess, Name: "tokenauth_revoke_success_total", Help: "Revocation counter increments."},
	{ID: tokenauth.MetricRevokeNotFound, Name: "tokenauth_revoke_not_found_total", Help: "Revocations for unknown subjects."},
	{ID: tokenauth.MetricRevokeFailure, Name: "tokenauth_revoke_failure_total", Help: "Revocations that failed on a backend error."},
	{ID: tokenauth.MetricRefreshSuccess, Name: "tokenauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: tokenauth.MetricRefreshFailure, Name: "tokenauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: tokenauth.MetricGateAllowed, Name: "tokenauth_gate_allowed_total", Help: "Requests admitted by the gate."},
	{ID: tokenauth.MetricGateRejected, Name: "tokenauth_gate_rejected_total", Help: "Requests rejected by the gate."},
	{ID: tokenauth.MetricTokenMalformed, Name: "tokenauth_token_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: tokenauth.MetricTokenBadSignature, Name: "tokenauth_token_bad_signature_total", Help: "Tokens rejected for a bad signature."},
	{ID: tokenauth.MetricTokenExpired, Name: "tokenauth_token_expired_total", Help: "Tokens rejected as expired."},
	{ID: tokenauth.MetricCounterMismatch, Name: "tokenauth_counter_mismatch_total", Help: "Tokens rejected for a stale revocation counter."},
	{ID: tokenauth.MetricStoreFailure, Name: "tokenauth_store_failure_total", Help: "Identity store errors and timeouts."},
	{ID: tokenauth.MetricRateLimitHit, Name: "tokenauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tokenauth.MetricValidateLatency, Name: "tokenauth_validate_latency_seconds", Help: "Token authorization latency histogram."},
}

// BucketCount is the number of latency buckets, +Inf included.
const BucketCount = 8

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// normalizeBuckets copies raw into a fixed bucket array, zero-filling missing buckets.
func normalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// cumulativeBuckets converts per-bucket counts into running totals.
func cumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
