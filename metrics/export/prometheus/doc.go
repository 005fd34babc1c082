// Package prometheus exposes gate metrics as a prometheus.Collector.
//
// [NewExporter] registers the collector with a private registry; mount
// [Exporter.Handler] or register the exporter with your own registry. Counter
// names are gogate_*_total; the latency histograms are
// gogate_authenticate_latency_seconds and gogate_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate gate state.
package prometheus
