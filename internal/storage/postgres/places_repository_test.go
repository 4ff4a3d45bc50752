package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/domain/places"
)

func TestPlaceRepository(t *testing.T) {
	ctx := context.Background()
	store := setupPostgres(t)
	repo := store.Places()
	owner := insertUser(t, store.pool, "owner@campus.edu")
	other := insertUser(t, store.pool, "other@campus.edu")

	lat, lng := 13.7563, 100.5018
	created, err := repo.Create(ctx, owner, places.CreateParams{
		Name: "Library", Latitude: &lat, Longitude: &lng, Category: "study",
		AdditionalInfo: map[string]any{"floor": 3, "quiet": true},
	})
	require.NoError(t, err)
	require.True(t, created.IsFavorite)
	require.Equal(t, float64(3), created.AdditionalInfo["floor"])
	require.Equal(t, true, created.AdditionalInfo["quiet"])

	plain, err := repo.Create(ctx, owner, places.CreateParams{Name: "Canteen", Latitude: &lat, Longitude: &lng, Category: "food"})
	require.NoError(t, err)
	require.Empty(t, plain.AdditionalInfo)

	_, err = repo.Get(ctx, created.ID, other)
	require.ErrorIs(t, err, places.ErrNotFound)

	favorite := false
	updated, err := repo.Update(ctx, created.ID, owner, places.UpdateParams{IsFavorite: &favorite})
	require.NoError(t, err)
	require.False(t, updated.IsFavorite)
	require.Equal(t, float64(3), updated.AdditionalInfo["floor"])

	list, total, err := repo.List(ctx, owner, places.Pagination{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)

	_, total, err = repo.List(ctx, other, places.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Zero(t, total)

	require.ErrorIs(t, repo.Delete(ctx, created.ID, other), places.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, created.ID, owner))
}
