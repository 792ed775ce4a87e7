// Package internaldefs holds the metric names, help strings and latency
// bucket bounds that every tokenauth exporter publishes, plus [Collect], which
// turns an engine snapshot into an ordered [Sample] ready for rendering.
//
// Exporters must not rename metrics locally; a name change here changes the
// Prometheus and OpenTelemetry output together.
package internaldefs
