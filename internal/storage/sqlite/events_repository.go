package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unisphere-campus/server/internal/domain/events"
)

type EventRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ events.Repository = (*EventRepository)(nil)

const eventColumns = `id, title, description, category, image_url, location, event_date, status,
       max_capacity, registration_count, created_by, created_at, updated_at`

func (r *EventRepository) queryer() queryer {
	return conn{db: r.db, tx: r.tx}.queryer()
}

// WithTx runs fn inside a transaction. The single pooled connection is held
// until commit or rollback, which serialises concurrent callers.
func (r *EventRepository) WithTx(ctx context.Context, fn func(context.Context, events.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &EventRepository{db: r.db, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams, createdBy int64) (*events.Event, error) {
	ts := now()
	row := r.queryer().QueryRowContext(ctx, `
INSERT INTO events (title, description, category, image_url, location, event_date, status, max_capacity,
                    created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+eventColumns,
		params.Title, params.Description, params.Category, params.ImageURL, params.Location,
		params.Date.UTC(), params.Status, params.MaxCapacity, createdBy, ts, ts,
	)
	event, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*events.Event, error) {
	event, err := scanEvent(r.queryer().QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// GetForUpdate is a plain read: the transaction already holds the only
// connection, so no other writer can interleave.
func (r *EventRepository) GetForUpdate(ctx context.Context, id int64) (*events.Event, error) {
	return r.GetByID(ctx, id)
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, page events.Pagination) ([]events.Event, error) {
	rows, err := r.queryer().QueryContext(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE (? = '' OR category = ?)
   AND (? = '' OR status = ?)
 ORDER BY id ASC
 LIMIT ? OFFSET ?
`, filters.Category, filters.Category, filters.Status, filters.Status, limitArg(page.Limit), page.Skip)
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
	rows, err := r.queryer().QueryContext(ctx, `SELECT id FROM events WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list event ids: %w", err)
	}
	return collectIDs(rows)
}

func (r *EventRepository) Update(ctx context.Context, id int64, params events.UpdateParams) (*events.Event, error) {
	var date any
	if params.Date != nil {
		date = params.Date.UTC()
	}
	row := r.queryer().QueryRowContext(ctx, `
UPDATE events
   SET title        = COALESCE(?, title),
       description  = COALESCE(?, description),
       category     = COALESCE(?, category),
       image_url    = COALESCE(?, image_url),
       location     = COALESCE(?, location),
       event_date   = COALESCE(?, event_date),
       status       = COALESCE(?, status),
       max_capacity = CASE WHEN ? THEN NULL ELSE COALESCE(?, max_capacity) END,
       updated_at   = ?
 WHERE id = ?
RETURNING `+eventColumns,
		params.Title, params.Description, params.Category, params.ImageURL, params.Location,
		date, params.Status, params.ClearMaxCapacity, params.MaxCapacity, now(), id,
	)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.queryer().ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) FindRegistration(ctx context.Context, eventID, userID int64) (*events.Registration, error) {
	row := r.queryer().QueryRowContext(ctx, `
SELECT id, event_id, user_id, notes, registered_at
  FROM event_registrations
 WHERE event_id = ? AND user_id = ?
`, eventID, userID)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, events.ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func (r *EventRepository) CreateRegistration(ctx context.Context, eventID, userID int64, notes *string) (*events.Registration, error) {
	row := r.queryer().QueryRowContext(ctx, `
INSERT INTO event_registrations (event_id, user_id, notes, registered_at)
VALUES (?, ?, ?, ?)
RETURNING id, event_id, user_id, notes, registered_at
`, eventID, userID, notes, now())
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
	res, err := r.queryer().ExecContext(ctx, `DELETE FROM event_registrations WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return n > 0, nil
}

func (r *EventRepository) DeleteRegistrations(ctx context.Context, eventID int64) (int64, error) {
	res, err := r.queryer().ExecContext(ctx, `DELETE FROM event_registrations WHERE event_id = ?`, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete event registrations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete event registrations: %w", err)
	}
	return n, nil
}

func (r *EventRepository) ListRegistrations(ctx context.Context, eventID int64, page events.Pagination) ([]events.Registration, error) {
	rows, err := r.queryer().QueryContext(ctx, `
SELECT id, event_id, user_id, notes, registered_at
  FROM event_registrations
 WHERE event_id = ?
 ORDER BY id ASC
 LIMIT ? OFFSET ?
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
	if err := r.queryer().QueryRowContext(ctx, `SELECT count(*) FROM event_registrations WHERE event_id = ?`, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

func (r *EventRepository) RegisteredEventIDs(ctx context.Context, userID int64, eventIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	args := append([]any{userID}, int64Args(eventIDs)...)
	rows, err := r.queryer().QueryContext(ctx,
		`SELECT event_id FROM event_registrations WHERE user_id = ? AND event_id IN (`+placeholders(len(eventIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query registered events: %w", err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// IncrementRegistrationCount claims a seat. It reports false when the event
// is full or missing.
func (r *EventRepository) IncrementRegistrationCount(ctx context.Context, eventID int64) (bool, error) {
	res, err := r.queryer().ExecContext(ctx, `
UPDATE events
   SET registration_count = registration_count + 1
 WHERE id = ?
   AND (max_capacity IS NULL OR registration_count < max_capacity)
`, eventID)
	if err != nil {
		return false, fmt.Errorf("increment registration count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment registration count: %w", err)
	}
	return n == 1, nil
}

func (r *EventRepository) DecrementRegistrationCount(ctx context.Context, eventID int64) error {
	res, err := r.queryer().ExecContext(ctx, `
UPDATE events SET registration_count = MAX(registration_count - 1, 0) WHERE id = ?
`, eventID)
	if err != nil {
		return fmt.Errorf("decrement registration count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) SetRegistrationCount(ctx context.Context, eventID int64, count int) error {
	res, err := r.queryer().ExecContext(ctx, `UPDATE events SET registration_count = ? WHERE id = ?`, count, eventID)
	if err != nil {
		return fmt.Errorf("set registration count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return events.ErrNotFound
	}
	return nil
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func scanEvent(row rowScanner) (*events.Event, error) {
	var (
		event    events.Event
		capacity sql.NullInt64
	)
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Category,
		&event.ImageURL,
		&event.Location,
		&event.Date,
		&event.Status,
		&capacity,
		&event.RegistrationCount,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if capacity.Valid {
		value := int(capacity.Int64)
		event.MaxCapacity = &value
	}
	event.Date = event.Date.UTC()
	return &event, nil
}

func scanRegistration(row rowScanner) (*events.Registration, error) {
	var (
		reg   events.Registration
		notes sql.NullString
	)
	if err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &notes, &reg.RegisteredAt); err != nil {
		return nil, err
	}
	if notes.Valid {
		reg.Notes = &notes.String
	}
	return &reg, nil
}
