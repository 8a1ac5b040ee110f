// Package command provides the mbaas-cli command definitions.
//
// Commands are built with urfave/cli/v2:
//
//   - root.go: application, global flags, runtime wiring
//   - session.go: session subcommand group
//   - watch.go: long-running session verification
//   - config.go: configuration subcommand group
//   - shell.go: interactive shell running the commands above
//   - version.go: build information
//
// Every command loads the effective configuration (defaults, file,
// MBAAS_* environment, then flags), opens the local token store and
// talks to the backend through a service.AuthSession.
package command
