package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// latencyInstruments publishes one histogram as a bucket gauge keyed by the
// "le" attribute plus a count gauge.
type latencyInstruments struct {
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics through OpenTelemetry observable
// instruments. Values are read from the source on every collection.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration

	counters       map[string]metric.Int64ObservableCounter
	latency        map[string]latencyInstruments
	auditDropped   metric.Int64ObservableCounter
	auditDelivered metric.Int64ObservableCounter
}

// bucketAttrs are precomputed so collection does not allocate attribute sets.
var bucketAttrs = func() [internaldefs.BucketCount]metric.ObserveOption {
	var out [internaldefs.BucketCount]metric.ObserveOption
	for i, le := range internaldefs.HistogramBounds {
		out[i] = metric.WithAttributes(attribute.String("le", le))
	}
	return out
}()

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *tokenauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments that read from any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[string]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
		latency:  make(map[string]latencyInstruments, len(internaldefs.HistogramDefs)),
	}
	var observables []metric.Observable

	counter := func(name, help string) (metric.Int64ObservableCounter, error) {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}
	gauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create observable gauge %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}

	for _, def := range internaldefs.CounterDefs {
		ins, err := counter(def.Name, def.Help)
		if err != nil {
			return nil, err
		}
		e.counters[def.Name] = ins
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := gauge(def.Name+"_bucket", def.Help+" Cumulative count per upper bound.")
		if err != nil {
			return nil, err
		}
		count, err := gauge(def.Name+"_count", def.Help+" Total observations.")
		if err != nil {
			return nil, err
		}
		e.latency[def.Name] = latencyInstruments{buckets: buckets, count: count}
	}

	var err error
	if e.auditDropped, err = counter("tokenauth_audit_dropped_total", "Audit events dropped because the dispatcher buffer was full."); err != nil {
		return nil, err
	}
	if e.auditDelivered, err = counter("tokenauth_audit_delivered_total", "Audit events handed to the configured sinks."); err != nil {
		return nil, err
	}

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	sample := internaldefs.Collect(e.source)

	if sample.Counters == nil {
		// metrics disabled: still publish zeros so series exist
		for _, ins := range e.counters {
			o.ObserveInt64(ins, 0)
		}
	}
	for _, c := range sample.Counters {
		o.ObserveInt64(e.counters[c.Name], int64(c.Value))
	}
	for _, l := range sample.Latency {
		ins := e.latency[l.Name]
		for i, v := range l.Cumulative {
			o.ObserveInt64(ins.buckets, int64(v), bucketAttrs[i])
		}
		o.ObserveInt64(ins.count, int64(l.Count()))
	}
	o.ObserveInt64(e.auditDropped, int64(sample.AuditDropped))
	o.ObserveInt64(e.auditDelivered, int64(sample.AuditDelivered))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
