package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/storage"
)

func TestOpenSQLiteAutoMigrates(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "backend.db"),
		AutoMigrate: true,
	}
	store, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	require.Equal(t, storage.DriverSQLite, store.Driver())
	version, dirty, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{"unknown driver", config.DatabaseConfig{Driver: "mysql"}, `unknown storage driver "mysql"`},
		{"postgres without url", config.DatabaseConfig{Driver: config.DriverPostgres}, "DATABASE_URL is required"},
		{"sqlite without path", config.DatabaseConfig{Driver: config.DriverSQLite}, "SQLITE_PATH is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Open(context.Background(), tc.cfg, zerolog.Nop())
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestMigrateUnknownDriver(t *testing.T) {
	require.Error(t, MigrateUp(config.DatabaseConfig{Driver: "oracle"}))
	require.Error(t, MigrateDown(config.DatabaseConfig{Driver: "oracle"}, 1))
}
