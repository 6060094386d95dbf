// Package prometheus renders goReset engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] takes a built [goReset.Engine] and returns an
// exporter whose [PrometheusExporter.Handler] can be mounted on any mux.
// Counters are named goreset_*_total and the one histogram is
// goreset_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into a global Prometheus registry.
//   - Mutate engine state.
package prometheus
