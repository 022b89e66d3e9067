// Package prometheus renders goShield metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [goShield.Manager] and exposes an
// [http.Handler] that renders all counters and the Authorize latency
// histogram. Counter names are prefixed goshield_*_total; the histogram
// is goshield_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler where they want it.
//   - Mutate manager state.
package prometheus
