package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// PrometheusExporter serves engine counters, the authorization latency
// histogram and audit dispatcher totals in the Prometheus text format.
type PrometheusExporter struct {
	source internaldefs.Source
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *tokenauth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" while the engine has metrics
// and audit disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	sample := internaldefs.Collect(p.source)
	if sample.Empty() {
		return ""
	}

	w := textWriter{}
	w.b.Grow(4096)
	for _, c := range sample.Counters {
		w.counter(c.Name, c.Help, c.Value)
	}
	for _, l := range sample.Latency {
		w.histogram(l)
	}
	w.counter("tokenauth_audit_dropped_total", "Audit events dropped because the dispatcher buffer was full.", sample.AuditDropped)
	w.counter("tokenauth_audit_delivered_total", "Audit events handed to the configured sinks.", sample.AuditDelivered)
	return w.b.String()
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) sample(name, labels string, v uint64) {
	w.b.WriteString(name)
	w.b.WriteString(labels)
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte('\n')
}

func (w *textWriter) counter(name, help string, v uint64) {
	w.header(name, help, "counter")
	w.sample(name, "", v)
}

// histogram writes cumulative buckets and the count. Observations are bucketed
// on record, so no sum exists and _sum is always 0.
func (w *textWriter) histogram(l internaldefs.LatencyValue) {
	w.header(l.Name, l.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(l.Name+"_bucket", `{le="`+le+`"}`, l.Cumulative[i])
	}
	w.sample(l.Name+"_count", "", l.Count())
	w.sample(l.Name+"_sum", "", 0)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
