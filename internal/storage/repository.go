package storage

import (
	"context"

	"github.com/unisphere-campus/server/internal/domain/announcements"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/places"
	"github.com/unisphere-campus/server/internal/domain/users"
	"github.com/unisphere-campus/server/internal/metrics"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store groups data access by domain. The postgres and sqlite packages each
// provide one.
type Store interface {
	Events() events.Repository
	Users() users.Repository
	Tokens() users.TokenRepository
	Announcements() announcements.Repository
	Places() places.Repository

	Ping(ctx context.Context) error
	// MigrationVersion reports the applied schema version and whether the
	// last migration left the schema dirty.
	MigrationVersion(ctx context.Context) (version uint, dirty bool, err error)
	PoolStats() metrics.PoolStats
	Driver() string
	Close()
}
