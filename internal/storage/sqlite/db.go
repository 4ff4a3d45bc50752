package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/unisphere-campus/server/internal/domain/announcements"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/places"
	"github.com/unisphere-campus/server/internal/domain/users"
	"github.com/unisphere-campus/server/internal/metrics"
	"github.com/unisphere-campus/server/internal/storage"
	_ "modernc.org/sqlite"
)

// Store is the single-node storage.Store. SQLite serialises writers, so the
// pool holds exactly one connection and every transaction owns it for its
// whole lifetime.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// DSN builds the driver connection string for a database file.
func DSN(path string) string {
	values := url.Values{}
	values.Add("_pragma", "foreign_keys(1)")
	values.Add("_pragma", "busy_timeout(5000)")
	values.Add("_pragma", "journal_mode(WAL)")
	values.Set("_time_format", "sqlite")
	return "file:" + path + "?" + values.Encode()
}

func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Events() events.Repository {
	return &EventRepository{db: s.db}
}

func (s *Store) Users() users.Repository {
	return &UserRepository{db: s.db}
}

func (s *Store) Tokens() users.TokenRepository {
	return &TokenRepository{db: s.db}
}

func (s *Store) Announcements() announcements.Repository {
	return &AnnouncementRepository{db: s.db}
}

func (s *Store) Places() places.Repository {
	return &PlaceRepository{db: s.db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) MigrationVersion(ctx context.Context) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return uint(version), dirty, nil
}

func (s *Store) PoolStats() metrics.PoolStats {
	stat := s.db.Stats()
	return metrics.PoolStats{
		Open:    stat.OpenConnections,
		InUse:   stat.InUse,
		Idle:    stat.Idle,
		MaxOpen: stat.MaxOpenConnections,
	}
}

func (s *Store) Driver() string {
	return storage.DriverSQLite
}

func (s *Store) Close() {
	_ = s.db.Close()
}
