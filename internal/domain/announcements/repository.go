package announcements

import (
	"context"
	"time"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Announcement struct {
	ID        int64
	Title     string
	Content   string
	Category  string
	Priority  string
	Date      time.Time
	CreatedBy int64
	// CreatorName is filled in by the service from the users table.
	CreatorName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateParams struct {
	Title    string     `json:"title" validate:"required,max=255"`
	Content  string     `json:"content" validate:"required"`
	Category string     `json:"category" validate:"required,max=100"`
	Priority string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	Date     *time.Time `json:"date"`
}

type UpdateParams struct {
	Title    *string    `json:"title" validate:"omitempty,max=255"`
	Content  *string    `json:"content"`
	Category *string    `json:"category" validate:"omitempty,max=100"`
	Priority *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Date     *time.Time `json:"date"`
}

func (p UpdateParams) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Category == nil && p.Priority == nil && p.Date == nil
}

type Filters struct {
	Category string
	Priority string
}

type Pagination struct {
	Skip  int
	Limit int
}

// Repository lists announcements newest date first, ties broken by id
// descending.
type Repository interface {
	Create(ctx context.Context, params CreateParams, createdBy int64) (*Announcement, error)
	GetByID(ctx context.Context, id int64) (*Announcement, error)
	List(ctx context.Context, filters Filters, page Pagination) ([]Announcement, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Announcement, error)
	Delete(ctx context.Context, id int64) error
}
