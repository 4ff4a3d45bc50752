package places

import (
	"context"
	"time"
)

// Place is a location a user saved for themselves. Every read and write is
// scoped to the owning user.
type Place struct {
	ID             int64
	UserID         int64
	Name           string
	Description    string
	Latitude       float64
	Longitude      float64
	Category       string
	ImageURL       string
	AdditionalInfo map[string]any
	IsFavorite     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateParams struct {
	Name           string         `json:"name" validate:"required,max=255"`
	Description    string         `json:"description"`
	Latitude       *float64       `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude      *float64       `json:"longitude" validate:"required,gte=-180,lte=180"`
	Category       string         `json:"category" validate:"required,max=100"`
	ImageURL       string         `json:"image_url" validate:"omitempty,max=500"`
	AdditionalInfo map[string]any `json:"additional_info"`
	IsFavorite     *bool          `json:"is_favorite"`
}

type UpdateParams struct {
	Name           *string        `json:"name" validate:"omitempty,max=255"`
	Description    *string        `json:"description"`
	Latitude       *float64       `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64       `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Category       *string        `json:"category" validate:"omitempty,max=100"`
	ImageURL       *string        `json:"image_url" validate:"omitempty,max=500"`
	AdditionalInfo map[string]any `json:"additional_info"`
	IsFavorite     *bool          `json:"is_favorite"`
}

func (p UpdateParams) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Latitude == nil && p.Longitude == nil &&
		p.Category == nil && p.ImageURL == nil && p.AdditionalInfo == nil && p.IsFavorite == nil
}

type Pagination struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Places []Place
	Total  int
	Limit  int
	Offset int
}

// Repository returns ErrNotFound for places owned by someone else, the same
// as for missing ones. List orders by updated_at descending.
type Repository interface {
	Create(ctx context.Context, userID int64, params CreateParams) (*Place, error)
	Get(ctx context.Context, id, userID int64) (*Place, error)
	List(ctx context.Context, userID int64, page Pagination) ([]Place, int, error)
	Update(ctx context.Context, id, userID int64, params UpdateParams) (*Place, error)
	Delete(ctx context.Context, id, userID int64) error
}
