package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/metrics"
)

// Runner owns the River client for the postgres backend. It also answers
// the /health job queue check.
type Runner struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRunner migrates River's tables and builds a client with both periodic
// jobs registered. Call Start to begin working jobs.
func NewRunner(ctx context.Context, pool *pgxpool.Pool, cfg config.JobsConfig, events CountSyncer, tokens TokenPurger, logger *slog.Logger) (*Runner, error) {
	if pool == nil {
		return nil, errors.New("jobs require a postgres pool")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := Migrate(ctx, pool); err != nil {
		return nil, err
	}

	hooks := []rivertype.Hook{metrics.NewJobHook()}
	client, err := NewClient(pool, NewWorkers(events, tokens, logger), logger, hooks, NewPeriodicJobs(cfg))
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Runner{client: client, pool: pool, logger: logger}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("start river: %w", err)
	}
	r.logger.Info("river workers started")
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (r *Runner) Stop(ctx context.Context) error {
	if err := r.client.Stop(ctx); err != nil {
		return fmt.Errorf("stop river: %w", err)
	}
	r.logger.Info("river workers stopped")
	return nil
}

// EnqueueCountSync schedules an immediate registration count sync.
func (r *Runner) EnqueueCountSync(ctx context.Context) error {
	opts := InsertOptsForKind(JobKindRegistrationCountSync)
	if _, err := r.client.Insert(ctx, RegistrationCountSyncArgs{}, &opts); err != nil {
		return fmt.Errorf("enqueue %s: %w", JobKindRegistrationCountSync, err)
	}
	return nil
}

// ActiveJobs counts jobs that are queued, scheduled, retrying or running.
func (r *Runner) ActiveJobs(ctx context.Context) (int64, error) {
	const query = `
SELECT count(*)
  FROM river_job
 WHERE state IN ('available', 'scheduled', 'retryable', 'running')`
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}
