package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unisphere-campus/server/internal/domain/events"
)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ events.Repository = (*EventRepository)(nil)

const eventColumns = `id, title, description, category, image_url, location, event_date, status,
       max_capacity, registration_count, created_by, created_at, updated_at`

func (r *EventRepository) queryer() queryer {
	return conn{pool: r.pool, tx: r.tx}.queryer()
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer one.
func (r *EventRepository) WithTx(ctx context.Context, fn func(context.Context, events.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &EventRepository{pool: r.pool, tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams, createdBy int64) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO events (title, description, category, image_url, location, event_date, status, max_capacity, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+eventColumns,
		params.Title, params.Description, params.Category, params.ImageURL, params.Location,
		params.Date, params.Status, params.MaxCapacity, createdBy,
	)
	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*events.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

// GetForUpdate locks the event row until the surrounding transaction ends.
func (r *EventRepository) GetForUpdate(ctx context.Context, id int64) (*events.Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

func (r *EventRepository) get(ctx context.Context, query string, id int64) (*events.Event, error) {
	event, err := scanEvent(r.queryer().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, page events.Pagination) ([]events.Event, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE ($1 = '' OR category = $1)
   AND ($2 = '' OR status = $2)
 ORDER BY id ASC
 LIMIT $3 OFFSET $4
`, filters.Category, filters.Status, limitArg(page.Limit), page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func (r *EventRepository) ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := r.queryer().Query(ctx, `SELECT id FROM events WHERE id > $1 ORDER BY id ASC LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list event ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect event ids: %w", err)
	}
	return ids, nil
}

func (r *EventRepository) Update(ctx context.Context, id int64, params events.UpdateParams) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
UPDATE events
   SET title        = COALESCE($2, title),
       description  = COALESCE($3, description),
       category     = COALESCE($4, category),
       image_url    = COALESCE($5, image_url),
       location     = COALESCE($6, location),
       event_date   = COALESCE($7::timestamptz, event_date),
       status       = COALESCE($8, status),
       max_capacity = CASE WHEN $9::boolean THEN NULL ELSE COALESCE($10::integer, max_capacity) END,
       updated_at   = now()
 WHERE id = $1
RETURNING `+eventColumns,
		id, params.Title, params.Description, params.Category, params.ImageURL, params.Location,
		params.Date, params.Status, params.ClearMaxCapacity, params.MaxCapacity,
	)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) FindRegistration(ctx context.Context, eventID, userID int64) (*events.Registration, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT id, event_id, user_id, notes, registered_at
  FROM event_registrations
 WHERE event_id = $1 AND user_id = $2
`, eventID, userID)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func (r *EventRepository) CreateRegistration(ctx context.Context, eventID, userID int64, notes *string) (*events.Registration, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO event_registrations (event_id, user_id, notes)
VALUES ($1, $2, $3)
RETURNING id, event_id, user_id, notes, registered_at
`, eventID, userID, notes)
	reg, err := scanRegistration(row)
	switch {
	case isUniqueViolation(err):
		return nil, events.ErrAlreadyRegistered
	case isForeignKeyViolation(err):
		return nil, events.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (r *EventRepository) DeleteRegistration(ctx context.Context, eventID, userID int64) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM event_registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *EventRepository) DeleteRegistrations(ctx context.Context, eventID int64) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM event_registrations WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event registrations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) ListRegistrations(ctx context.Context, eventID int64, page events.Pagination) ([]events.Registration, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT id, event_id, user_id, notes, registered_at
  FROM event_registrations
 WHERE event_id = $1
 ORDER BY id ASC
 LIMIT $2 OFFSET $3
`, eventID, limitArg(page.Limit), page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	items := make([]events.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		items = append(items, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return items, nil
}

func (r *EventRepository) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	var count int
	if err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM event_registrations WHERE event_id = $1`, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

func (r *EventRepository) RegisteredEventIDs(ctx context.Context, userID int64, eventIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	rows, err := r.queryer().Query(ctx, `
SELECT event_id FROM event_registrations WHERE user_id = $1 AND event_id = ANY($2)
`, userID, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("query registered events: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect registered events: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// IncrementRegistrationCount claims a seat. It reports false when the event
// is full or missing.
func (r *EventRepository) IncrementRegistrationCount(ctx context.Context, eventID int64) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET registration_count = registration_count + 1
 WHERE id = $1
   AND (max_capacity IS NULL OR registration_count < max_capacity)
`, eventID)
	if err != nil {
		return false, fmt.Errorf("increment registration count: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) DecrementRegistrationCount(ctx context.Context, eventID int64) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events SET registration_count = GREATEST(registration_count - 1, 0) WHERE id = $1
`, eventID)
	if err != nil {
		return fmt.Errorf("decrement registration count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) SetRegistrationCount(ctx context.Context, eventID int64, count int) error {
	tag, err := r.queryer().Exec(ctx, `UPDATE events SET registration_count = $2 WHERE id = $1`, eventID, count)
	if err != nil {
		return fmt.Errorf("set registration count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var event events.Event
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Category,
		&event.ImageURL,
		&event.Location,
		&event.Date,
		&event.Status,
		&event.MaxCapacity,
		&event.RegistrationCount,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	event.Date = event.Date.UTC()
	return &event, nil
}

func scanRegistration(row pgx.Row) (*events.Registration, error) {
	var reg events.Registration
	if err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Notes, &reg.RegisteredAt); err != nil {
		return nil, err
	}
	return &reg, nil
}
