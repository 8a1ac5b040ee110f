package command

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mbaas-go/internal/cli/config"
	"github.com/yndnr/mbaas-go/internal/cli/repl"
	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "Command history file (default ~/.mbaas/history, empty string disables)",
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	historyFile := filepath.Join(config.DefaultConfigDir(), "history")
	if c.IsSet("history-file") {
		historyFile = c.String("history-file")
	}
	history := repl.NewHistory(historyFile, repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		logger.Default().Warn("load shell history failed", "path", historyFile, "error", err)
	}

	globals := globalArgs(c)
	exec := func(ctx context.Context, args []string) error {
		if args[0] == "shell" {
			return domain.ErrInvalidArgument.WithDetails("already in a shell")
		}
		app := App()
		app.Writer = c.App.Writer
		app.ErrWriter = c.App.ErrWriter
		return app.RunContext(ctx, append(append([]string{app.Name}, globals...), args...))
	}

	r := repl.New(exec,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithCompleter(repl.NewCompleter(append(commandPaths("", App().Commands), "help")...)),
		repl.WithHistory(history),
		repl.WithRedact(redactLine),
	)
	err := r.Run(c.Context)

	if serr := history.Save(); serr != nil {
		logger.Default().Warn("save shell history failed", "path", historyFile, "error", serr)
	}
	return err
}

// globalArgs renders the global flags set on the shell invocation so every
// command run from the shell sees them too.
func globalArgs(c *cli.Context) []string {
	var args []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if !c.IsSet(name) {
			continue
		}
		var value string
		switch f.(type) {
		case *cli.BoolFlag:
			value = strconv.FormatBool(c.Bool(name))
		case *cli.DurationFlag:
			value = c.Duration(name).String()
		default:
			value = c.String(name)
		}
		args = append(args, "--"+name+"="+value)
	}
	return args
}

// commandPaths lists the visible commands and subcommands as space separated
// paths.
func commandPaths(prefix string, cmds []*cli.Command) []string {
	var paths []string
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}
		path := strings.TrimSpace(prefix + " " + cmd.Name)
		paths = append(paths, path)
		paths = append(paths, commandPaths(path, cmd.Subcommands)...)
	}
	return paths
}

// secretFlags take a secret value that must not end up in the history.
var secretFlags = map[string]bool{
	"--api-key":    true,
	"-K":           true,
	"--passphrase": true,
}

// redactLine masks session tokens and secret flag values in a shell line.
func redactLine(line string) string {
	args, err := repl.Split(line)
	if err != nil {
		return line
	}

	redacted := false
	for i, arg := range args {
		if name, _, ok := strings.Cut(arg, "="); ok && secretFlags[name] {
			args[i] = name + "=" + logger.RedactString(arg[len(name)+1:])
			redacted = true
			continue
		}
		if i == 0 {
			continue
		}
		if secretFlags[args[i-1]] || (args[i-1] == "save" && isSessionCommand(args[:i-1])) {
			args[i] = logger.RedactString(arg)
			redacted = true
		}
	}
	if !redacted {
		return line
	}
	return strings.Join(args, " ")
}

func isSessionCommand(args []string) bool {
	for _, arg := range args {
		if arg == "session" || arg == "sess" {
			return true
		}
	}
	return false
}
