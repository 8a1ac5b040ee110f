package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mbaas-go/internal/cli/config"
	"github.com/yndnr/mbaas-go/internal/core/domain"
	"github.com/yndnr/mbaas-go/internal/infra/confloader"
	"github.com/yndnr/mbaas-go/internal/infra/shutdown"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
)

const shutdownTimeout = 5 * time.Second

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Verify the stored token periodically until interrupted",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Time between verifications (default from watch.interval)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g., :9090)",
			},
			&cli.BoolFlag{
				Name:  "clear-invalid",
				Usage: "Revoke and remove the token once the backend reports it invalid",
			},
			&cli.BoolFlag{
				Name:  "no-auth",
				Usage: "Send requests without API key headers",
			},
		},
		Action: sessionWatch,
	}
}

type watchOptions struct {
	interval     time.Duration
	clearInvalid bool
	useAuth      bool
}

func sessionWatch(c *cli.Context) error {
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := watchOptions{
		interval:     rt.cfg.Watch.Interval.Std(),
		clearInvalid: rt.cfg.Watch.ClearInvalid || c.Bool("clear-invalid"),
		useAuth:      !c.Bool("no-auth"),
	}
	if c.IsSet("interval") {
		opts.interval = c.Duration("interval")
	}
	if opts.interval <= 0 {
		return domain.ErrInvalidArgument.WithDetails("interval must be positive")
	}

	metricsAddr := rt.cfg.Metrics.Address
	if c.IsSet("metrics-addr") {
		metricsAddr = c.String("metrics-addr")
	}

	var srv *http.Server
	if metricsAddr != "" {
		rt.engine.RegisterMetrics(rt.metrics.Registerer())
		if srv, err = serveMetrics(rt, metricsAddr); err != nil {
			return err
		}
	}

	h := shutdown.NewHandler(shutdownTimeout)
	if srv != nil {
		h.OnShutdown(srv.Shutdown)
	}

	// Rotated client certificates are picked up without a restart.
	if rt.certs != nil {
		rt.certs.StartAsync()
	}

	configPath := c.String("config")
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	if w, err := watchConfig(c, rt.log, configPath); err != nil {
		rt.log.Warn("config reload disabled", "path", configPath, "error", err)
	} else {
		h.OnShutdown(func(context.Context) error { return w.Stop() })
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	waitErr := make(chan error, 1)
	go func() { waitErr <- h.Wait(ctx) }()

	rt.log.Info("session watch started",
		"interval", opts.interval,
		"clear_invalid", opts.clearInvalid)

	runWatch(h.Context(), c, rt, opts)

	cancel()
	return <-waitErr
}

// runWatch verifies the session every interval until ctx is done.
func runWatch(ctx context.Context, c *cli.Context, rt *runtime, opts watchOptions) {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		watchOnce(ctx, c, rt, opts)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watchOnce runs a single check. Failures are reported and the watch goes on.
func watchOnce(ctx context.Context, c *cli.Context, rt *runtime, opts watchOptions) {
	now := time.Now().Format(time.RFC3339)

	// Another process may have saved or cleared the token since the last tick.
	if err := rt.session.Reload(ctx); err != nil {
		rt.log.Warn("reload session failed", "error", err)
		return
	}
	if !rt.session.Exists() {
		fmt.Fprintf(c.App.Writer, "%s no session\n", now)
		return
	}

	valid, err := rt.session.Verify(ctx, opts.useAuth)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		rt.log.Warn("verify failed", "error", err)
		fmt.Fprintf(c.App.Writer, "%s error %v\n", now, err)
		return
	}
	fmt.Fprintf(c.App.Writer, "%s valid=%t\n", now, valid)

	if valid || !opts.clearInvalid {
		return
	}
	if err := rt.session.Clear(ctx, opts.useAuth); err != nil {
		rt.log.Warn("clear invalid session failed", "error", err)
		return
	}
	fmt.Fprintf(c.App.Writer, "%s cleared\n", now)
}

func serveMetrics(rt *runtime, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error("metrics server failed", "error", err)
		}
	}()

	rt.log.Info("serving metrics", "addr", srv.Addr)
	return srv, nil
}

// watchConfig reloads the log level whenever the config file changes.
// Flags given on the command line keep their precedence.
func watchConfig(c *cli.Context, log logger.Logger, path string) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	overrides := flagOverrides(c)
	w.OnChange(func(string) {
		cfg, err := config.Load(path, overrides)
		if err != nil {
			log.Warn("ignoring invalid config change", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	w.StartAsync()
	return w, nil
}
