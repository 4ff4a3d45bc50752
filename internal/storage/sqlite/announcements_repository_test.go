package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/domain/announcements"
)

func TestAnnouncementsThroughService(t *testing.T) {
	ctx := context.Background()
	store := setupSQLite(t)
	admin := insertUser(t, store, "admin@campus.edu")
	svc := announcements.NewService(store.Announcements(), store.Users(), zerolog.Nop())

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for i, category := range []string{"exam", "sports", "exam"} {
		date := base.Add(time.Duration(i) * 24 * time.Hour)
		_, err := svc.Create(ctx, announcements.CreateParams{
			Title: category, Content: "details", Category: category, Priority: "high", Date: &date,
		}, admin)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, announcements.Filters{}, announcements.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, base.Add(48*time.Hour), list[0].Date)
	require.Equal(t, "Test User", list[0].CreatorName)

	exams, err := svc.ListByCategory(ctx, "exam", announcements.Pagination{Limit: 1, Skip: 1})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	require.Equal(t, base, exams[0].Date)

	low := "low"
	updated, err := svc.Update(ctx, exams[0].ID, announcements.UpdateParams{Priority: &low})
	require.NoError(t, err)
	require.Equal(t, "low", updated.Priority)

	high, err := svc.ListHighPriority(ctx, announcements.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, high, 2)

	require.NoError(t, svc.Delete(ctx, updated.ID))
	_, err = svc.Get(ctx, updated.ID)
	require.ErrorIs(t, err, announcements.ErrNotFound)
}
