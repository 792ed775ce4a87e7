package internaldefs

import "github.com/MrEthical07/tokenauth"

// Source is what an exporter reads from. *tokenauth.Engine satisfies it.
type Source interface {
	MetricsSnapshot() tokenauth.MetricsSnapshot
	AuditDropped() uint64
	AuditDelivered() uint64
}

// CounterValue pairs a counter definition with its current value.
type CounterValue struct {
	CounterDef
	Value uint64
}

// LatencyValue pairs a histogram definition with cumulative bucket counts,
// one per entry of HistogramBounds.
type LatencyValue struct {
	HistogramDef
	Cumulative [BucketCount]uint64
}

// Count is the total number of observations.
func (l LatencyValue) Count() uint64 {
	return l.Cumulative[BucketCount-1]
}

// Sample is one ordered read of every exported series.
type Sample struct {
	Counters       []CounterValue
	Latency        []LatencyValue
	AuditDropped   uint64
	AuditDelivered uint64
}

// Empty reports whether the source had nothing to publish, which is the
// case while engine metrics and audit are both disabled.
func (s Sample) Empty() bool {
	return len(s.Counters) == 0 && len(s.Latency) == 0 && s.AuditDropped == 0 && s.AuditDelivered == 0
}

// Collect reads src once. Counters and histograms are emitted in definition
// order; missing snapshot entries read as zero.
func Collect(src Source) Sample {
	snap := src.MetricsSnapshot()
	out := Sample{
		AuditDropped:   src.AuditDropped(),
		AuditDelivered: src.AuditDelivered(),
	}
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 {
		return out
	}

	out.Counters = make([]CounterValue, len(CounterDefs))
	for i, def := range CounterDefs {
		out.Counters[i] = CounterValue{CounterDef: def, Value: snap.Counters[def.ID]}
	}
	out.Latency = make([]LatencyValue, len(HistogramDefs))
	for i, def := range HistogramDefs {
		out.Latency[i] = LatencyValue{
			HistogramDef: def,
			Cumulative:   cumulativeBuckets(normalizeBuckets(snap.Histograms[def.ID])),
		}
	}
	return out
}
