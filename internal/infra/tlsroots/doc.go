// Package tlsroots builds the client TLS configuration used to reach the
// backend:
//
//   - roots.go: system roots plus an optional private CA bundle
//   - watcher.go: client certificate reload via fsnotify
package tlsroots
