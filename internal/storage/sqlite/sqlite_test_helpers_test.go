package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unisphere.db")
	require.NoError(t, MigrateUp(path))

	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func insertUser(t *testing.T, store *Store, email string) int64 {
	t.Helper()
	ts := now()
	var id int64
	err := store.db.QueryRow(
		`INSERT INTO users (first_name, last_name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		"Test", "User", email, "hash", ts, ts,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func intPtr(v int) *int {
	return &v
}
