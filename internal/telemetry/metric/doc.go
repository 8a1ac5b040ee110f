// Package metric provides Prometheus metrics for the MBaaS client.
//
// Metrics include:
//
//   - Session presence and per-operation outcome counters
//   - Backend request counters and latency histograms
//   - Local store statistics (registered by the storage engine)
//
// Long-running commands expose them at /metrics in Prometheus format.
package metric
