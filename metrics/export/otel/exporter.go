package otel

import (
	"context"
	"errors"
	"fmt"
	"sort"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no gate or metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goGate.MetricsSnapshot
	AuditStats() goGate.AuditStats
}

// bucketBounds holds one attribute set per histogram bucket, "le" matching
// internaldefs.HistogramBounds.
var bucketBounds = func() []metric.ObserveOption {
	out := make([]metric.ObserveOption, len(internaldefs.HistogramBounds))
	for i, le := range internaldefs.HistogramBounds {
		out[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	return out
}()

type latencyGauges struct {
	id      goGate.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type auditCounters struct {
	events   metric.Int64ObservableCounter
	failures metric.Int64ObservableCounter
	dropped  metric.Int64ObservableCounter
}

// Exporter publishes gate metrics and audit relay counters through observable
// OTel instruments.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     map[goGate.MetricID]metric.Int64ObservableCounter
	latencies    []latencyGauges
	audit        auditCounters
}

// NewExporter registers instruments for gate on meter.
func NewExporter(meter metric.Meter, gate *goGate.Gate) (*Exporter, error) {
	if gate == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, gate)
}

// NewExporterFromSource registers instruments reading from source on meter.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[goGate.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	var instruments []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		instruments = append(instruments, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencyGauges{id: def.ID, buckets: buckets, count: count})
		instruments = append(instruments, buckets, count)
	}

	var err error
	if e.audit.events, err = meter.Int64ObservableCounter(internaldefs.AuditEventsName, metric.WithDescription(internaldefs.AuditEventsHelp)); err != nil {
		return nil, fmt.Errorf("audit events counter: %w", err)
	}
	if e.audit.failures, err = meter.Int64ObservableCounter(internaldefs.AuditFailuresName, metric.WithDescription(internaldefs.AuditFailuresHelp)); err != nil {
		return nil, fmt.Errorf("audit failures counter: %w", err)
	}
	if e.audit.dropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp)); err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	instruments = append(instruments, e.audit.events, e.audit.failures, e.audit.dropped)

	e.registration, err = meter.RegisterCallback(e.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for id, v := range snapshot.Counters {
		if c, ok := e.counters[id]; ok {
			o.ObserveInt64(c, int64(v))
		}
	}
	for _, l := range e.latencies {
		raw, ok := snapshot.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, n := range cumulative {
			o.ObserveInt64(l.buckets, int64(n), bucketBounds[i])
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}

	stats := e.source.AuditStats()
	observeLabelled(o, e.audit.events, "type", stats.ByType)
	observeLabelled(o, e.audit.failures, "kind", stats.Failures)
	o.ObserveInt64(e.audit.dropped, int64(stats.Dropped))
	return nil
}

func observeLabelled(o metric.Observer, c metric.Int64ObservableCounter, key string, values map[string]uint64) {
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		o.ObserveInt64(c, int64(values[label]), metric.WithAttributes(attribute.String(key, label)))
	}
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
