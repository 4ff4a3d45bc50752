package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unisphere-campus/server/internal/domain/announcements"
)

type AnnouncementRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ announcements.Repository = (*AnnouncementRepository)(nil)

const announcementColumns = `id, title, content, category, priority, announcement_date, created_by, created_at, updated_at`

func (r *AnnouncementRepository) queryer() queryer {
	return conn{db: r.db, tx: r.tx}.queryer()
}

func (r *AnnouncementRepository) Create(ctx context.Context, params announcements.CreateParams, createdBy int64) (*announcements.Announcement, error) {
	ts := now()
	date := ts
	if params.Date != nil {
		date = params.Date.UTC()
	}
	row := r.queryer().QueryRowContext(ctx, `
INSERT INTO announcements (title, content, category, priority, announcement_date, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+announcementColumns,
		params.Title, params.Content, params.Category, params.Priority, date, createdBy, ts, ts,
	)
	item, err := scanAnnouncement(row)
	if err != nil {
		return nil, fmt.Errorf("insert announcement: %w", err)
	}
	return item, nil
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*announcements.Announcement, error) {
	item, err := scanAnnouncement(r.queryer().QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, announcements.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	return item, nil
}

func (r *AnnouncementRepository) List(ctx context.Context, filters announcements.Filters, page announcements.Pagination) ([]announcements.Announcement, error) {
	rows, err := r.queryer().QueryContext(ctx, `
SELECT `+announcementColumns+`
  FROM announcements
 WHERE (? = '' OR category = ?)
   AND (? = '' OR priority = ?)
 ORDER BY announcement_date DESC, id DESC
 LIMIT ? OFFSET ?
`, filters.Category, filters.Category, filters.Priority, filters.Priority, limitArg(page.Limit), page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	items := make([]announcements.Announcement, 0)
	for rows.Next() {
		item, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcements: %w", err)
	}
	return items, nil
}

func (r *AnnouncementRepository) Update(ctx context.Context, id int64, params announcements.UpdateParams) (*announcements.Announcement, error) {
	var date any
	if params.Date != nil {
		date = params.Date.UTC()
	}
	row := r.queryer().QueryRowContext(ctx, `
UPDATE announcements
   SET title             = COALESCE(?, title),
       content           = COALESCE(?, content),
       category          = COALESCE(?, category),
       priority          = COALESCE(?, priority),
       announcement_date = COALESCE(?, announcement_date),
       updated_at        = ?
 WHERE id = ?
RETURNING `+announcementColumns,
		params.Title, params.Content, params.Category, params.Priority, date, now(), id,
	)
	item, err := scanAnnouncement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, announcements.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update announcement: %w", err)
	}
	return item, nil
}

func (r *AnnouncementRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.queryer().ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return announcements.ErrNotFound
	}
	return nil
}

func scanAnnouncement(row rowScanner) (*announcements.Announcement, error) {
	var item announcements.Announcement
	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Content,
		&item.Category,
		&item.Priority,
		&item.Date,
		&item.CreatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Date = item.Date.UTC()
	return &item, nil
}
