package tokenauth

import (
	internalmetrics "github.com/MrEthical07/tokenauth/internal/metrics"
)

// MetricID identifies a counter or histogram in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess      = internalmetrics.MetricLoginSuccess
	MetricLoginFailure      = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited  = internalmetrics.MetricLoginRateLimited
	MetricLoginUnavailable  = internalmetrics.MetricLoginUnavailable
	MetricRegisterSuccess   = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate = internalmetrics.MetricRegisterDuplicate
	MetricRegisterInvalid   = internalmetrics.MetricRegisterInvalid
	MetricRegisterFailure   = internalmetrics.MetricRegisterFailure
	MetricRevokeSuccess     = internalmetrics.MetricRevokeSuccess
	MetricRevokeNotFound    = internalmetrics.MetricRevokeNotFound
	MetricRevokeFailure     = internalmetrics.MetricRevokeFailure
	MetricRefreshSuccess    = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure    = internalmetrics.MetricRefreshFailure
	MetricGateAllowed       = internalmetrics.MetricGateAllowed
	MetricGateRejected      = internalmetrics.MetricGateRejected
	MetricTokenMalformed    = internalmetrics.MetricTokenMalformed
	MetricTokenBadSignature = internalmetrics.MetricTokenBadSignature
	MetricTokenExpired      = internalmetrics.MetricTokenExpired
	MetricCounterMismatch   = internalmetrics.MetricCounterMismatch
	MetricStoreFailure      = internalmetrics.MetricStoreFailure
	MetricRateLimitHit      = internalmetrics.MetricRateLimitHit
	MetricValidateLatency   = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
