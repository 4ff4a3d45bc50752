package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unisphere-campus/server/internal/domain/places"
)

type PlaceRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ places.Repository = (*PlaceRepository)(nil)

const placeColumns = `id, user_id, name, description, latitude, longitude, category, image_url,
       additional_info, is_favorite, created_at, updated_at`

func (r *PlaceRepository) queryer() queryer {
	return conn{pool: r.pool, tx: r.tx}.queryer()
}

func (r *PlaceRepository) Create(ctx context.Context, userID int64, params places.CreateParams) (*places.Place, error) {
	favorite := true
	if params.IsFavorite != nil {
		favorite = *params.IsFavorite
	}
	row := r.queryer().QueryRow(ctx, `
INSERT INTO user_places (user_id, name, description, latitude, longitude, category, image_url, additional_info, is_favorite)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::jsonb, '{}'::jsonb), $9)
RETURNING `+placeColumns,
		userID, params.Name, params.Description, params.Latitude, params.Longitude, params.Category,
		params.ImageURL, jsonArg(params.AdditionalInfo), favorite,
	)
	place, err := scanPlace(row)
	if err != nil {
		return nil, fmt.Errorf("insert place: %w", err)
	}
	return place, nil
}

func (r *PlaceRepository) Get(ctx context.Context, id, userID int64) (*places.Place, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+placeColumns+` FROM user_places WHERE id = $1 AND user_id = $2`, id, userID)
	place, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, places.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	return place, nil
}

func (r *PlaceRepository) List(ctx context.Context, userID int64, page places.Pagination) ([]places.Place, int, error) {
	var total int
	if err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM user_places WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count places: %w", err)
	}

	rows, err := r.queryer().Query(ctx, `
SELECT `+placeColumns+`
  FROM user_places
 WHERE user_id = $1
 ORDER BY updated_at DESC, id DESC
 LIMIT $2 OFFSET $3
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
	row := r.queryer().QueryRow(ctx, `
UPDATE user_places
   SET name            = COALESCE($3, name),
       description     = COALESCE($4, description),
       latitude        = COALESCE($5::double precision, latitude),
       longitude       = COALESCE($6::double precision, longitude),
       category        = COALESCE($7, category),
       image_url       = COALESCE($8, image_url),
       additional_info = COALESCE($9::jsonb, additional_info),
       is_favorite     = COALESCE($10::boolean, is_favorite),
       updated_at      = now()
 WHERE id = $1 AND user_id = $2
RETURNING `+placeColumns,
		id, userID, params.Name, params.Description, params.Latitude, params.Longitude, params.Category,
		params.ImageURL, jsonArg(params.AdditionalInfo), params.IsFavorite,
	)
	place, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, places.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update place: %w", err)
	}
	return place, nil
}

func (r *PlaceRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM user_places WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return places.ErrNotFound
	}
	return nil
}

// jsonArg sends a nil map as SQL NULL instead of the JSON literal null.
func jsonArg(value map[string]any) any {
	if value == nil {
		return nil
	}
	return value
}

func scanPlace(row pgx.Row) (*places.Place, error) {
	var place places.Place
	if err := row.Scan(
		&place.ID,
		&place.UserID,
		&place.Name,
		&place.Description,
		&place.Latitude,
		&place.Longitude,
		&place.Category,
		&place.ImageURL,
		&place.AdditionalInfo,
		&place.IsFavorite,
		&place.CreatedAt,
		&place.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if place.AdditionalInfo == nil {
		place.AdditionalInfo = map[string]any{}
	}
	return &place, nil
}
