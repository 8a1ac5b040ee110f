// Package connection provides the HTTP transport used to talk to the MBaaS
// backend.
//
// HTTPClient sends JSON POST requests and captures every exchange as a
// domain.Response:
//
//   - Optional API key headers (X-API-Key-ID / X-API-Key) per request
//   - A ULID X-Request-ID on every request
//   - Client-side rate limiting
//   - Custom TLS settings (private CA, client certificate)
//   - Request counters and latency histograms
package connection
