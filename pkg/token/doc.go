// Package token provides helpers for handling session tokens without
// exposing them: SHA-256 hashes, short fingerprints for display and logs,
// and constant-time comparison.
package token
