package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/unisphere-campus/server/internal/api"
	"github.com/unisphere-campus/server/internal/api/handlers"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/jobs"
	"github.com/unisphere-campus/server/internal/metrics"
	"github.com/unisphere-campus/server/internal/storage/postgres"
	"github.com/unisphere-campus/server/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var host string
	var port int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the UniSphere HTTP server",
		Long: `Start the UniSphere HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables
- Apply database migrations when DATABASE_AUTO_MIGRATE is true
- Bootstrap the admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
- Start background jobs (postgres only) for registration count sync and token cleanup
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug --log-format console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	serveCmd.Flags().StringVar(&host, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&port, "port", 0, "server port (default: 8080)")
	return serveCmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	build := currentBuild()
	logger.Info().Str("version", build.Version).Str("storage_driver", cfg.Database.Driver).Msg("starting UniSphere server")

	metrics.Init(build.Version, build.GitCommit, build.BuildDate, cfg.Database.Driver)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, build.Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.bootstrapAdmin(bootstrapCtx); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	cancel()

	go metrics.NewPoolWatcher(a.store).Run(ctx, 15*time.Second)

	runner, err := startJobs(ctx, a)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Config:        cfg,
		Logger:        logger,
		Build:         build,
		Authenticator: a.users,
		Auth:          a.users,
		Events:        a.events,
		Notifier:      a.mailer,
		Announcements: a.announcements,
		Places:        a.places,
		Health:        a.store,
	}
	if runner != nil {
		deps.Jobs = runner
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := runner.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("job runner shutdown error")
			}
		}()
	}
	router := api.NewRouter(deps)
	defer router.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return serveUntilDone(ctx, server, logger)
}

// startJobs runs the River queue when the postgres backend is in use. It
// returns nil when jobs are disabled or the backend has no job queue.
func startJobs(ctx context.Context, a *app) (*jobs.Runner, error) {
	if !a.cfg.Jobs.Enabled {
		a.logger.Info().Msg("background jobs disabled")
		return nil, nil
	}
	pgStore, ok := a.store.(*postgres.Store)
	if !ok {
		a.logger.Warn().Str("storage_driver", a.store.Driver()).Msg("background jobs need postgres; run the events sync-counts and tokens cleanup commands on a schedule instead")
		return nil, nil
	}

	runner, err := jobs.NewRunner(ctx, pgStore.Pool(), a.cfg.Jobs, a.events, a.users, config.NewSlogLogger(a.cfg.Logging))
	if err != nil {
		return nil, fmt.Errorf("create job runner: %w", err)
	}
	if err := runner.Start(ctx); err != nil {
		return nil, err
	}
	return runner, nil
}

func serveUntilDone(ctx context.Context, server *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

var _ handlers.JobQueue = (*jobs.Runner)(nil)
