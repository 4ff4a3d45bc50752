// Package backend selects and opens the configured storage driver.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/storage"
	"github.com/unisphere-campus/server/internal/storage/postgres"
	"github.com/unisphere-campus/server/internal/storage/sqlite"
)

// Open migrates (when enabled) and opens the store for cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		if cfg.AutoMigrate {
			if err := postgres.MigrateUp(cfg.URL); err != nil {
				return nil, err
			}
			logger.Info().Str("driver", cfg.Driver).Msg("migrations applied")
		}
		pool, err := postgres.OpenPool(ctx, cfg.URL, cfg.MaxConnections)
		if err != nil {
			return nil, err
		}
		store, err := postgres.NewStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case config.DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
		if cfg.AutoMigrate {
			if err := sqlite.MigrateUp(cfg.SQLitePath); err != nil {
				return nil, err
			}
			logger.Info().Str("driver", cfg.Driver).Str("path", cfg.SQLitePath).Msg("migrations applied")
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// MigrateUp applies pending migrations for the configured driver.
func MigrateUp(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.MigrateUp(cfg.URL)
	case config.DriverSQLite:
		return sqlite.MigrateUp(cfg.SQLitePath)
	}
	return fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// MigrateDown rolls back steps migrations for the configured driver.
func MigrateDown(cfg config.DatabaseConfig, steps int) error {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.MigrateDown(cfg.URL, steps)
	case config.DriverSQLite:
		return sqlite.MigrateDown(cfg.SQLitePath, steps)
	}
	return fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
