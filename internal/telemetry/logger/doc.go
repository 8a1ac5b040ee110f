// Package logger provides structured logging for the mbaas command.
//
// Log lines share stderr with the errors a command prints for the user, so
// the defaults keep them quiet: only warnings and above, as text without
// timestamps. Scripts that collect logs can switch to one JSON object per
// line with log.format=json.
//
// Session tokens, keys and passphrases are masked by attribute name before
// any handler sees them.
package logger
