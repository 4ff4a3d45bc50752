package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unisphere-campus/server/internal/domain/announcements"
)

type AnnouncementRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ announcements.Repository = (*AnnouncementRepository)(nil)

const announcementColumns = `id, title, content, category, priority, announcement_date, created_by, created_at, updated_at`

func (r *AnnouncementRepository) queryer() queryer {
	return conn{pool: r.pool, tx: r.tx}.queryer()
}

func (r *AnnouncementRepository) Create(ctx context.Context, params announcements.CreateParams, createdBy int64) (*announcements.Announcement, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO announcements (title, content, category, priority, announcement_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+announcementColumns,
		params.Title, params.Content, params.Category, params.Priority, params.Date, createdBy,
	)
	item, err := scanAnnouncement(row)
	if err != nil {
		return nil, fmt.Errorf("insert announcement: %w", err)
	}
	return item, nil
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*announcements.Announcement, error) {
	item, err := scanAnnouncement(r.queryer().QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, announcements.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	return item, nil
}

func (r *AnnouncementRepository) List(ctx context.Context, filters announcements.Filters, page announcements.Pagination) ([]announcements.Announcement, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+announcementColumns+`
  FROM announcements
 WHERE ($1 = '' OR category = $1)
   AND ($2 = '' OR priority = $2)
 ORDER BY announcement_date DESC, id DESC
 LIMIT $3 OFFSET $4
`, filters.Category, filters.Priority, limitArg(page.Limit), page.Skip)
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
	row := r.queryer().QueryRow(ctx, `
UPDATE announcements
   SET title             = COALESCE($2, title),
       content           = COALESCE($3, content),
       category          = COALESCE($4, category),
       priority          = COALESCE($5, priority),
       announcement_date = COALESCE($6::timestamptz, announcement_date),
       updated_at        = now()
 WHERE id = $1
RETURNING `+announcementColumns,
		id, params.Title, params.Content, params.Category, params.Priority, params.Date,
	)
	item, err := scanAnnouncement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, announcements.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update announcement: %w", err)
	}
	return item, nil
}

func (r *AnnouncementRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return announcements.ErrNotFound
	}
	return nil
}

func scanAnnouncement(row pgx.Row) (*announcements.Announcement, error) {
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
