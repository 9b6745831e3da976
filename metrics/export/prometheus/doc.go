// Package prometheus renders goSession metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads a [goSession.Manager] and exposes an
// [http.Handler]. Counter names are prefixed gosession_*_total; the single
// histogram is gosession_backend_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate session state.
package prometheus
