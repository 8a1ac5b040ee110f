// Package repl implements the interactive shell of mbaas-cli.
//
//   - repl.go: read-eval-print loop and line splitting
//   - completer.go: command suggestions
//   - history.go: persisted command history
//
// The loop itself knows nothing about commands: each line is split into
// arguments and handed to an ExecFunc.
package repl
