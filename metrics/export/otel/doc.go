// Package otel publishes gate metrics through OpenTelemetry observable
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter per gate counter. Each
// latency histogram becomes a "_bucket" gauge carrying an "le" attribute plus
// a "_count" gauge. Audit relay totals are exported by event type and by
// refresh failure kind. One callback reads [goGate.Gate.MetricsSnapshot] and
// [goGate.Gate.AuditStats] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate gate state.
package otel
