package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"turnstile-hq/turnstile/pkg/cli"
	"turnstile-hq/turnstile/pkg/config"
	"turnstile-hq/turnstile/pkg/limits"
	"turnstile-hq/turnstile/pkg/limits/audit"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
	"turnstile-hq/turnstile/pkg/server"
	"turnstile-hq/turnstile/pkg/telemetry/health"
	"turnstile-hq/turnstile/pkg/telemetry/logging"
	"turnstile-hq/turnstile/pkg/telemetry/metrics"
	"turnstile-hq/turnstile/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Turnstile service",
	Long: `Start the Turnstile service with the specified configuration.

The service registers every configured identity, serves metrics and health
checks on the operations address, records decisions to the audit trail when
enabled, and reconciles the identity set whenever the configuration file
changes (limits.watch: true).

Examples:
  # Start with default config
  turnstile run

  # Start with custom config
  turnstile run --config /etc/turnstile/config.yaml

  # Override listen address
  turnstile run --listen 0.0.0.0:9100

  # Validate config and build the limiter without serving
  turnstile run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build everything without starting the server")
}

func runService(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	a, err := newApp(cfg, config.Path(), logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Turnstile v%s\n", Version)
	fmt.Fprintf(out, "Configuration: %s\n", config.Path())
	fmt.Fprintf(out, "Identities: %d registered\n", a.limiter.Len())

	if runFlags.dryRun {
		fmt.Fprintln(out, "Configuration valid")
		return a.close(context.Background())
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	fmt.Fprintf(out, "Ops server: http://%s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	runErr := a.run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	closeErr := a.close(shutdownCtx)

	if err := errors.Join(runErr, closeErr); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "Turnstile stopped")
	return nil
}

// app holds the long-lived components of the run command.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	tracer    *tracing.Tracer
	collector *metrics.Collector
	store     audit.Storage
	recorder  *audit.Recorder
	scheduler *audit.Scheduler
	limiter   *limits.RateLimiter[string]
	checker   *health.Checker
	server    *server.Server

	closeOnce sync.Once
}

// newApp wires the components described by cfg and registers the
// configured identities. cfgPath is re-read on reload.
func newApp(cfg *config.Config, cfgPath string, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, cfgPath: cfgPath, logger: logger}
	if err := a.build(); err != nil {
		// Release whatever was opened before the failure.
		if cerr := a.close(context.Background()); cerr != nil {
			logger.Warn("cleanup after failed startup", "error", cerr)
		}
		return nil, err
	}
	return a, nil
}

// build opens and wires every component. On error the components built so
// far stay set on a for close.
func (a *app) build() error {
	cfg, logger := a.cfg, a.logger

	var err error
	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	opts := []limits.Option{
		limits.WithLogger(logger.With("component", "limits")),
		limits.WithTracer(a.tracer.Tracer()),
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, Version)
		opts = append(opts, limits.WithMetrics(a.collector.Limits()))
	}

	a.checker = health.New(2 * time.Second)

	if cfg.Audit.Enabled {
		a.store, err = cfg.Audit.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		a.recorder = audit.NewRecorder(a.store, cfg.Audit.RecorderConfig())
		a.scheduler = audit.NewScheduler(audit.NewPruner(a.store, cfg.Audit.RetentionConfig()))

		opts = append(opts, limits.WithRecorder(a.recorder))
		if a.collector != nil {
			a.collector.Limits().ObserveAuditDrops(a.recorder)
		}
		a.checker.RegisterCheck("audit_storage", health.StorageCheck(a.store))
		a.checker.RegisterCheck("audit_recorder", health.RecorderCheck(a.recorder, 0))
	}

	a.limiter = limits.New[string](opts...)

	res := a.applyIdentities(cfg.Limits.Identities)
	if len(res.Errors) > 0 {
		return fmt.Errorf("failed to register identities: %w", errors.Join(res.Errors...))
	}

	deps := server.Deps{
		Health:          a.checker,
		Version:         versionInfo(),
		Identities:      a.limiter,
		HealthRateLimit: cfg.Server.HealthRateLimit,
		Logger:          logger,
	}
	if a.collector != nil {
		deps.Metrics = a.collector.Handler()
		deps.MetricsPath = a.collector.Path()
	}
	a.server = server.New(cfg.Server, deps)

	return nil
}

// applyIdentities reconciles the registered identities with desired and
// logs every identity that could not be registered.
func (a *app) applyIdentities(desired map[string]ratelimit.Config) limits.ReconcileResult[string] {
	res := a.limiter.Reconcile(desired)

	for _, err := range res.Errors {
		a.logger.Error("identity registration failed", "error", err)
	}
	return res
}

// reload re-reads the configuration file and reconciles the identity set.
// Other settings take effect on restart.
func (a *app) reload() error {
	cfg, err := config.LoadConfigWithEnvOverrides(a.cfgPath)
	if err != nil {
		return err
	}
	config.SetConfig(cfg)

	res := a.applyIdentities(cfg.Limits.Identities)
	if len(res.Errors) > 0 {
		return fmt.Errorf("reload: %w", errors.Join(res.Errors...))
	}
	return nil
}

// run starts the retention scheduler and config watcher, then serves until
// ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		if next := a.scheduler.NextRun(); next != nil {
			a.logger.Debug("audit retention scheduled", "next_run", next)
		}
	}

	var wg sync.WaitGroup
	if a.cfg.Limits.Watch && a.cfgPath != "" {
		watcher, err := config.NewWatcher(a.cfgPath, a.cfg.Limits.WatchDebounce, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		defer func() {
			_ = watcher.Stop()
			wg.Wait()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Watch(ctx, a.reload); err != nil {
				a.logger.Error("config watcher exited", "error", err)
			}
		}()
	}

	return a.server.Start(ctx)
}

// close releases every component in reverse dependency order. It is safe
// to call on a partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.server != nil {
			errs = append(errs, a.server.Shutdown(ctx))
		}
		if a.scheduler != nil {
			a.scheduler.Stop()
		}
		if a.limiter != nil {
			// Flushes the recorder.
			errs = append(errs, a.limiter.Close())
		} else if a.recorder != nil {
			errs = append(errs, a.recorder.Close())
		}
		if a.store != nil {
			errs = append(errs, a.store.Close())
		}
		if a.tracer != nil {
			errs = append(errs, a.tracer.Shutdown(ctx))
		}
	})
	return errors.Join(errs...)
}
