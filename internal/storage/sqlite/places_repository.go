package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/unisphere-campus/server/internal/domain/places"
)

type PlaceRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ places.Repository = (*PlaceRepository)(nil)

const placeColumns = `id, user_id, name, description, latitude, longitude, category, image_url,
       additional_info, is_favorite, created_at, updated_at`

func (r *PlaceRepository) queryer() queryer {
	return conn{db: r.db, tx: r.tx}.queryer()
}

func (r *PlaceRepository) Create(ctx context.Context, userID int64, params places.CreateParams) (*places.Place, error) {
	info, err := encodeInfo(params.AdditionalInfo)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = "{}"
	}
	favorite := true
	if params.IsFavorite != nil {
		favorite = *params.IsFavorite
	}
	ts := now()
	row := r.queryer().QueryRowContext(ctx, `
INSERT INTO user_places (user_id, name, description, latitude, longitude, category, image_url, additional_info,
                         is_favorite, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+placeColumns,
		userID, params.Name, params.Description, params.Latitude, params.Longitude, params.Category,
		params.ImageURL, info, favorite, ts, ts,
	)
	place, err := scanPlace(row)
	if err != nil {
		return nil, fmt.Errorf("insert place: %w", err)
	}
	return place, nil
}

func (r *PlaceRepository) Get(ctx context.Context, id, userID int64) (*places.Place, error) {
	row := r.queryer().QueryRowContext(ctx, `SELECT `+placeColumns+` FROM user_places WHERE id = ? AND user_id = ?`, id, userID)
	place, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, places.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	return place, nil
}

func (r *PlaceRepository) List(ctx context.Context, userID int64, page places.Pagination) ([]places.Place, int, error) {
	var total int
	if err := r.queryer().QueryRowContext(ctx, `SELECT count(*) FROM user_places WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count places: %w", err)
	}

	rows, err := r.queryer().QueryContext(ctx, `
SELECT `+placeColumns+`
  FROM user_places
 WHERE user_id = ?
 ORDER BY updated_at DESC, id DESC
 LIMIT ? OFFSET ?
`, userID, limitArg(page.Limit), page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	items := make([]places.Place, 0)
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan place: %w", err)
		}
		items = append(items, *place)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate places: %w", err)
	}
	return items, total, nil
}

func (r *PlaceRepository) Update(ctx context.Context, id, userID int64, params places.UpdateParams) (*places.Place, error) {
	info, err := encodeInfo(params.AdditionalInfo)
	if err != nil {
		return nil, err
	}
	row := r.queryer().QueryRowContext(ctx, `
UPDATE user_places
   SET name            = COALESCE(?, name),
       description     = COALESCE(?, description),
       latitude        = COALESCE(?, latitude),
       longitude       = COALESCE(?, longitude),
       category        = COALESCE(?, category),
       image_url       = COALESCE(?, image_url),
       additional_info = COALESCE(?, additional_info),
       is_favorite     = COALESCE(?, is_favorite),
       updated_at      = ?
 WHERE id = ? AND user_id = ?
RETURNING `+placeColumns,
		params.Name, params.Description, params.Latitude, params.Longitude, params.Category,
		params.ImageURL, info, params.IsFavorite, now(), id, userID,
	)
	place, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, places.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update place: %w", err)
	}
	return place, nil
}

func (r *PlaceRepository) Delete(ctx context.Context, id, userID int64) error {
	res, err := r.queryer().ExecContext(ctx, `DELETE FROM user_places WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete place: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return places.ErrNotFound
	}
	return nil
}

// encodeInfo returns nil for a nil map so COALESCE keeps the stored value.
func encodeInfo(info map[string]any) (any, error) {
	if info == nil {
		return nil, nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode additional_info: %w", err)
	}
	return string(raw), nil
}

func scanPlace(row rowScanner) (*places.Place, error) {
	var (
		place places.Place
		info  string
	)
	if err := row.Scan(
		&place.ID,
		&place.UserID,
		&place.Name,
		&place.Description,
		&place.Latitude,
		&place.Longitude,
		&place.Category,
		&place.ImageURL,
		&info,
		&place.IsFavorite,
		&place.CreatedAt,
		&place.UpdatedAt,
	); err != nil {
		return nil, err
	}
	place.AdditionalInfo = map[string]any{}
	if info != "" {
		if err := json.Unmarshal([]byte(info), &place.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("decode additional_info: %w", err)
		}
	}
	return &place, nil
}
