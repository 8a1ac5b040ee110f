package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
	sesstoken "github.com/yndnr/mbaas-go/pkg/token"
)

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	noAuth := &cli.BoolFlag{
		Name:  "no-auth",
		Usage: "Send the request without API key headers",
	}

	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Local session token management",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show whether a session token is stored",
				Action: sessionStatus,
			},
			{
				Name:   "token",
				Usage:  "Print the stored session token",
				Action: sessionToken,
			},
			{
				Name:      "save",
				Usage:     "Store a newly issued session token",
				ArgsUsage: "TOKEN",
				Action:    sessionSave,
			},
			{
				Name:   "verify",
				Usage:  "Ask the backend whether the stored token is valid",
				Flags:  []cli.Flag{noAuth},
				Action: sessionVerify,
			},
			{
				Name:    "clear",
				Aliases: []string{"revoke"},
				Usage:   "Revoke the stored token and remove it locally",
				Flags:   []cli.Flag{noAuth},
				Action:  sessionClear,
			},
			watchCommand(),
		},
	}
}

// SessionStatus is the output of "session status".
type SessionStatus struct {
	Exists      bool   `json:"exists" yaml:"exists"`
	Token       string `json:"token,omitempty" yaml:"token,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Host        string `json:"host" yaml:"host"`
}

// VerifyResult is the output of "session verify".
type VerifyResult struct {
	Exists    bool      `json:"exists" yaml:"exists"`
	Valid     bool      `json:"valid" yaml:"valid"`
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`
}

func sessionStatus(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	status := SessionStatus{Host: rt.client.BaseURL()}
	if token, ok := rt.session.Token(); ok {
		status.Exists = true
		status.Token = logger.RedactString(token)
		status.Fingerprint = sesstoken.Fingerprint(token)
	}

	return printResult(c, rt.cfg.Output, status)
}

func sessionToken(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	token, ok := rt.session.Token()
	if !ok {
		return domain.ErrSessionNotFound
	}

	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func sessionSave(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrInvalidArgument.WithDetails("usage: session save TOKEN")
	}

	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.session.Save(c.Context, c.Args().First()); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Session token saved")
	return nil
}

func sessionVerify(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	valid, err := rt.session.Verify(c.Context, !c.Bool("no-auth"))
	if err != nil {
		return err
	}

	return printResult(c, rt.cfg.Output, VerifyResult{
		Exists:    rt.session.Exists(),
		Valid:     valid,
		CheckedAt: time.Now(),
	})
}

func sessionClear(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.session.Exists() {
		fmt.Fprintln(c.App.Writer, "No session token stored")
		return nil
	}

	if err := rt.session.Clear(c.Context, !c.Bool("no-auth")); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Session revoked and removed")
	return nil
}
