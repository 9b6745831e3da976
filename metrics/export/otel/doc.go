// Package otel binds goSession counters and histograms to OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and
// one Int64ObservableGauge per histogram bucket. A single callback reads
// [goSession.Manager.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate session state.
package otel
