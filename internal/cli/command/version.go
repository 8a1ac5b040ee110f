package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/mbaas-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			format := c.String("output")
			if format == "" {
				format = "table"
			}
			return printResult(c, format, buildinfo.Get())
		},
	}
}
