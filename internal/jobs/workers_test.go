package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	calls  int
	synced int
	err    error
}

func (f *fakeSyncer) SyncAllRegistrationCounts(context.Context) (int, error) {
	f.calls++
	return f.synced, f.err
}

type fakePurger struct {
	at      time.Time
	deleted int64
	err     error
}

func (f *fakePurger) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	f.at = now
	return f.deleted, f.err
}

func newJob[T river.JobArgs](args T) *river.Job[T] {
	return &river.Job[T]{JobRow: &rivertype.JobRow{ID: 1, Attempt: 1, Kind: args.Kind()}, Args: args}
}

func TestRegistrationCountSyncWorker(t *testing.T) {
	syncer := &fakeSyncer{synced: 42}
	worker := RegistrationCountSyncWorker{Events: syncer}

	require.NoError(t, worker.Work(context.Background(), newJob(RegistrationCountSyncArgs{})))
	require.NoError(t, worker.Work(context.Background(), newJob(RegistrationCountSyncArgs{})))
	require.Equal(t, 2, syncer.calls)
	require.Equal(t, 10*time.Minute, worker.Timeout(nil))
}

func TestRegistrationCountSyncWorkerErrors(t *testing.T) {
	err := RegistrationCountSyncWorker{}.Work(context.Background(), newJob(RegistrationCountSyncArgs{}))
	require.ErrorContains(t, err, "event service not configured")

	syncer := &fakeSyncer{err: errors.New("connection reset")}
	err = RegistrationCountSyncWorker{Events: syncer}.Work(context.Background(), newJob(RegistrationCountSyncArgs{}))
	require.ErrorContains(t, err, "sync registration counts: connection reset")
}

func TestRevokedTokenCleanupWorker(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 3, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	purger := &fakePurger{deleted: 3}
	worker := RevokedTokenCleanupWorker{Tokens: purger, Now: func() time.Time { return fixed }}

	require.NoError(t, worker.Work(context.Background(), newJob(RevokedTokenCleanupArgs{})))
	require.True(t, purger.at.Equal(fixed))
	require.Equal(t, time.UTC, purger.at.Location())

	purger.err = errors.New("boom")
	require.Error(t, worker.Work(context.Background(), newJob(RevokedTokenCleanupArgs{})))

	err := RevokedTokenCleanupWorker{}.Work(context.Background(), newJob(RevokedTokenCleanupArgs{}))
	require.ErrorContains(t, err, "token service not configured")
}

func TestFailureHandlerAlertsOnlyWhenFinal(t *testing.T) {
	var got []error
	handler := NewFailureHandler(nil, func(_ context.Context, job *rivertype.JobRow, err error) {
		got = append(got, err)
	})
	ctx := context.Background()

	retrying := &rivertype.JobRow{ID: 7, Kind: JobKindRegistrationCountSync, Attempt: 1, MaxAttempts: 3}
	require.Nil(t, handler.HandleError(ctx, retrying, errors.New("db down")))
	require.Empty(t, got)

	final := &rivertype.JobRow{ID: 7, Kind: JobKindRegistrationCountSync, Attempt: 3, MaxAttempts: 3}
	require.Nil(t, handler.HandleError(ctx, final, errors.New("db down")))
	require.Nil(t, handler.HandlePanic(ctx, retrying, "nil map", "trace"))

	require.Len(t, got, 2)
	require.EqualError(t, got[0], "db down")
	require.EqualError(t, got[1], "panic: nil map")
}
