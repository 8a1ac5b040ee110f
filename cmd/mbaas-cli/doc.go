// Package main provides the entry point for mbaas-cli.
//
// mbaas-cli keeps the MBaaS session token of this machine in a local store
// and verifies or revokes it against the backend.
package main
