package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/internal/telemetry"
	"github.com/marmos91/thumbgate/pkg/api"
	"github.com/marmos91/thumbgate/pkg/bus"
	"github.com/marmos91/thumbgate/pkg/config"
	"github.com/marmos91/thumbgate/pkg/metrics"
	prommetrics "github.com/marmos91/thumbgate/pkg/metrics/prometheus"
	"github.com/marmos91/thumbgate/pkg/remote"
	"github.com/marmos91/thumbgate/pkg/requestctx"
	"github.com/marmos91/thumbgate/pkg/session/store"
	"github.com/marmos91/thumbgate/pkg/thumbnail"
	"github.com/marmos91/thumbgate/pkg/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the thumbgate server",
	Long: `Start the thumbgate server in the foreground.

The configuration file is optional: every setting can be provided through
THUMBGATE_* environment variables, which is how containers usually run it.

Examples:
  # Start with the default config location
  thumbgate start

  # Start with custom config file
  thumbgate start --config /etc/thumbgate/config.yaml

  # Start with environment variable overrides
  THUMBGATE_SESSION_STORE_REDIS_URI=redis://cache:6379/1 thumbgate start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(profilingConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("thumbgate starting", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Collectors are created below, so the registry must exist first.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	sessions, err := store.New(ctx, &cfg.SessionStore, prommetrics.NewSessionMetrics())
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("session store close error", "error", err)
		}
	}()
	logger.Info("Session store ready",
		logger.KeyBackend, sessions.Backend(),
		"codec", cfg.SessionStore.Codec)

	dialer, err := remote.Dial(&cfg.Omero)
	if err != nil {
		return fmt.Errorf("failed to create OMERO client: %w", err)
	}
	defer func() { _ = dialer.Close() }()
	logger.Info("OMERO gateway configured", "host", cfg.Omero.Host, "port", cfg.Omero.Port, "tls", cfg.Omero.TLS)

	pool := worker.New(cfg.Workers, prommetrics.NewWorkerMetrics())
	dispatch := bus.New(
		bus.WithDefaultTimeout(cfg.Dispatch.Timeout),
		bus.WithMetrics(prommetrics.NewDispatchMetrics()),
	)

	service := thumbnail.NewService(dialer,
		requestctx.WithCloseTimeout(cfg.Omero.CloseTimeout),
		requestctx.WithCallTimeout(cfg.Omero.CallTimeout),
		requestctx.WithMetrics(prommetrics.NewRemoteSessionMetrics()),
	)
	if err := service.Register(dispatch, pool); err != nil {
		return fmt.Errorf("failed to register thumbnail consumers: %w", err)
	}
	logger.Info("Dispatch ready", "endpoints", dispatch.Endpoints(), "workers", pool.Size(), "timeout", cfg.Dispatch.Timeout)

	server := api.NewServer(cfg.Server, api.Dependencies{
		Store:      sessions,
		Dispatcher: dispatch,
		Pool:       pool,
		Version:    Version,
	})

	watchConfig()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, cfg.ShutdownTimeout)
	})
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		g.Go(func() error {
			return metricsServer.Start(gctx)
		})
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	err = g.Wait()

	// The HTTP server has drained; fail whatever is still in flight and let
	// running handlers close their remote sessions.
	dispatch.Close()
	pool.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// loadConfig requires an explicit --config file to exist; otherwise a
// missing default file means defaults plus environment.
func loadConfig() (*config.Config, error) {
	if path := GetConfigFile(); path != "" {
		return config.MustLoad(path)
	}
	return config.Load("")
}

// watchConfig applies log level edits without a restart.
func watchConfig() {
	path := GetConfigFile()
	if path == "" {
		if !config.DefaultConfigExists() {
			return
		}
		path = config.GetDefaultConfigPath()
	}

	if err := config.Watch(path, config.ApplyRuntime); err != nil {
		logger.Warn("Configuration reload disabled", "file", path, "error", err)
		return
	}
	logger.Debug("Watching configuration for changes", "file", path)
}
