// Package prometheus renders tokenauth engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [tokenauth.Engine] and exposes an [http.Handler].
// Counter names are prefixed tokenauth_*_total; the single histogram is
// tokenauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
