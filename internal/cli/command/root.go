package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mbaas-go/internal/cli/config"
	"github.com/yndnr/mbaas-go/internal/cli/connection"
	"github.com/yndnr/mbaas-go/internal/cli/output"
	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/core/service"
	"github.com/yndnr/mbaas-go/internal/infra/buildinfo"
	"github.com/yndnr/mbaas-go/internal/infra/tlsroots"
	"github.com/yndnr/mbaas-go/internal/storage"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
	"github.com/yndnr/mbaas-go/internal/telemetry/metric"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "mbaas-cli",
		Usage:   "Manage the MBaaS session token of this machine",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SessionCommand(),
			ConfigCommand(),
			ShellCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags. None of them carry a default:
// unset flags leave the value from the config file, the environment or the
// built-in defaults in place.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path (default ~/.mbaas/cli.yaml)",
		},
		&cli.StringFlag{
			Name:    "host",
			Aliases: []string{"H"},
			Usage:   "Backend base URL (e.g., https://mbaas.example.com)",
		},
		&cli.StringFlag{
			Name:    "api-key-id",
			Aliases: []string{"k"},
			Usage:   "API Key ID for authenticated requests",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"K"},
			Usage:   "API Key secret for authenticated requests",
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory of the local token store",
		},
		&cli.BoolFlag{
			Name:  "in-memory",
			Usage: "Keep the token store in memory only",
		},
		&cli.StringFlag{
			Name:  "passphrase",
			Usage: "Seal the local token store with this passphrase",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
	}
}

// GlobalFlags holds the global flags of a command invocation.
type GlobalFlags struct {
	Config     string
	Host       string
	APIKeyID   string
	APIKey     string
	DataDir    string
	InMemory   bool
	Passphrase string
	Output     string
	LogLevel   string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:     c.String("config"),
		Host:       c.String("host"),
		APIKeyID:   c.String("api-key-id"),
		APIKey:     c.String("api-key"),
		DataDir:    c.String("data-dir"),
		InMemory:   c.Bool("in-memory"),
		Passphrase: c.String("passphrase"),
		Output:     c.String("output"),
		LogLevel:   c.String("log-level"),
	}
}

// flagOverrides maps explicitly set global flags to config keys.
func flagOverrides(c *cli.Context) map[string]any {
	flags := ParseGlobalFlags(c)
	overrides := make(map[string]any)

	set := func(flag, key string, value any) {
		if c.IsSet(flag) {
			overrides[key] = value
		}
	}
	set("host", "host", flags.Host)
	set("api-key-id", "auth.keyid", flags.APIKeyID)
	set("api-key", "auth.key", flags.APIKey)
	set("data-dir", "storage.dir", flags.DataDir)
	set("in-memory", "storage.inmemory", flags.InMemory)
	set("passphrase", "storage.passphrase", flags.Passphrase)
	set("output", "output", flags.Output)
	set("log-level", "log.level", flags.LogLevel)
	set("timeout", "transport.timeout", c.Duration("timeout").String())

	return overrides
}

// loadConfig returns the effective configuration of this invocation.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"), flagOverrides(c))
}

// runtime bundles what a session command needs.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Registry
	engine  *storage.BadgerEngine
	client  *connection.HTTPClient
	session *service.AuthSession

	// certs is set when a client certificate is configured.
	certs *tlsroots.Watcher
}

// openRuntime loads configuration, sets up logging and opens the session.
// The caller must Close the returned runtime.
func openRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: errWriter(c),
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	reg := metric.NewRegistry()

	kvCfg := storage.DefaultKVConfig(cfg.Storage.Dir)
	if cfg.Storage.InMemory {
		kvCfg = storage.InMemoryKVConfig()
	}
	engine, err := storage.NewBadgerEngine(kvCfg, log)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	var store service.TokenStore = engine
	if cfg.Storage.Passphrase != "" {
		sealed, err := storage.NewSealedStore(c.Context, engine, storage.SealConfig{
			Passphrase: []byte(cfg.Storage.Passphrase),
			Cipher:     cfg.Storage.Cipher,
		})
		if err != nil {
			engine.Close()
			return nil, domain.ErrSealFailed.WithCause(err)
		}
		store = sealed
	}

	clientOpts := []connection.Option{
		connection.WithTimeout(cfg.Transport.Timeout.Std()),
		connection.WithRateLimit(cfg.Transport.RateLimit, cfg.Transport.Burst),
		connection.WithMetrics(reg),
		connection.WithLogger(log),
	}
	var certs *tlsroots.Watcher
	if tlsOpts := cfg.Transport.TLS(); tlsOpts.Enabled() {
		tlsCfg, w, err := tlsroots.ClientConfig(tlsOpts, log)
		if err != nil {
			engine.Close()
			return nil, domain.ErrInvalidArgument.WithCause(err)
		}
		certs = w
		clientOpts = append(clientOpts, connection.WithTLSConfig(tlsCfg))
	}
	client := connection.NewHTTPClient(cfg.Host, cfg.Auth.KeyID, cfg.Auth.Key, clientOpts...)

	session, err := service.NewAuthSession(c.Context, store, client,
		service.WithLogger(log),
		service.WithMetrics(reg),
	)
	if err != nil {
		if certs != nil {
			certs.Stop()
		}
		engine.Close()
		return nil, err
	}

	return &runtime{
		cfg:     cfg,
		log:     log,
		metrics: reg,
		engine:  engine,
		client:  client,
		session: session,
		certs:   certs,
	}, nil
}

// Close waits for in-flight session work and closes the store.
func (r *runtime) Close() error {
	r.session.Wait()
	if r.certs != nil {
		r.certs.Stop()
	}
	return r.engine.Close()
}

// printResult writes data in the configured output format.
func printResult(c *cli.Context, format string, data any) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return domain.ErrInvalidArgument.WithCause(err)
	}
	return output.NewFormatter(f).Format(c.App.Writer, data)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints err to w the way main reports failures.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
