// Package otel exposes goReset engine metrics through an OpenTelemetry
// meter.
//
// [NewOTelExporter] creates one Int64ObservableCounter per engine counter
// and one Int64ObservableGauge per histogram bucket, all fed by a single
// callback that reads [goReset.Engine.MetricsSnapshot].
//
// # What this package must NOT do
//
//   - Own the MeterProvider.
//   - Mutate engine state.
package otel
