package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unisphere-campus/server/internal/domain/announcements"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/places"
	"github.com/unisphere-campus/server/internal/domain/users"
	"github.com/unisphere-campus/server/internal/metrics"
	"github.com/unisphere-campus/server/internal/storage"
)

// Store is the pgx-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// OpenPool parses databaseURL, applies the connection limit and verifies
// the server is reachable.
func OpenPool(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres store: pool is nil")
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for the job queue.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Events() events.Repository {
	return &EventRepository{pool: s.pool}
}

func (s *Store) Users() users.Repository {
	return &UserRepository{pool: s.pool}
}

func (s *Store) Tokens() users.TokenRepository {
	return &TokenRepository{pool: s.pool}
}

func (s *Store) Announcements() announcements.Repository {
	return &AnnouncementRepository{pool: s.pool}
}

func (s *Store) Places() places.Repository {
	return &PlaceRepository{pool: s.pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) MigrationVersion(ctx context.Context) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := s.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return uint(version), dirty, nil
}

func (s *Store) PoolStats() metrics.PoolStats {
	stat := s.pool.Stat()
	return metrics.PoolStats{
		Open:    int(stat.TotalConns()),
		InUse:   int(stat.AcquiredConns()),
		Idle:    int(stat.IdleConns()),
		MaxOpen: int(stat.MaxConns()),
	}
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

func (s *Store) Close() {
	s.pool.Close()
}
