package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// CountSyncer recomputes every event's cached registration count.
type CountSyncer interface {
	SyncAllRegistrationCounts(ctx context.Context) (int, error)
}

// TokenPurger drops revocation records for tokens that have expired.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type RegistrationCountSyncArgs struct{}

func (RegistrationCountSyncArgs) Kind() string { return JobKindRegistrationCountSync }

// RegistrationCountSyncWorker corrects counter drift left behind by manual
// database edits or failed writes. Running it twice is harmless.
type RegistrationCountSyncWorker struct {
	river.WorkerDefaults[RegistrationCountSyncArgs]
	Events CountSyncer
	Logger *slog.Logger
}

func (RegistrationCountSyncWorker) Kind() string { return JobKindRegistrationCountSync }

func (w RegistrationCountSyncWorker) Timeout(*river.Job[RegistrationCountSyncArgs]) time.Duration {
	return 10 * time.Minute
}

func (w RegistrationCountSyncWorker) Work(ctx context.Context, job *river.Job[RegistrationCountSyncArgs]) error {
	if w.Events == nil {
		return fmt.Errorf("event service not configured")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	synced, err := w.Events.SyncAllRegistrationCounts(ctx)
	if err != nil {
		return fmt.Errorf("sync registration counts: %w", err)
	}
	logger.Info("registration counts synced",
		"synced_events", synced,
		"attempt", job.Attempt,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

type RevokedTokenCleanupArgs struct{}

func (RevokedTokenCleanupArgs) Kind() string { return JobKindRevokedTokenCleanup }

type RevokedTokenCleanupWorker struct {
	river.WorkerDefaults[RevokedTokenCleanupArgs]
	Tokens TokenPurger
	Logger *slog.Logger
	Now    func() time.Time
}

func (RevokedTokenCleanupWorker) Kind() string { return JobKindRevokedTokenCleanup }

func (w RevokedTokenCleanupWorker) Work(ctx context.Context, job *river.Job[RevokedTokenCleanupArgs]) error {
	if w.Tokens == nil {
		return fmt.Errorf("token service not configured")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	deleted, err := w.Tokens.PurgeExpiredTokens(ctx, now().UTC())
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info("expired revoked tokens removed", "deleted", deleted)
	}
	return nil
}

func NewWorkers(events CountSyncer, tokens TokenPurger, logger *slog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[RegistrationCountSyncArgs](workers, RegistrationCountSyncWorker{Events: events, Logger: logger})
	river.AddWorker[RevokedTokenCleanupArgs](workers, RevokedTokenCleanupWorker{Tokens: tokens, Logger: logger})
	return workers
}
