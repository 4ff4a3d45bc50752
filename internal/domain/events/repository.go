package events

import (
	"context"
	"time"
)

const (
	StatusUpcoming  = "upcoming"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
)

type Event struct {
	ID                int64
	Title             string
	Description       string
	Category          string
	ImageURL          string
	Location          string
	Date              time.Time
	Status            string
	MaxCapacity       *int
	RegistrationCount int
	CreatedBy         int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsFull reports whether a capped event has no seats left. Unlimited events
// are never full.
func (e Event) IsFull() bool {
	if e.MaxCapacity == nil {
		return false
	}
	return e.RegistrationCount >= *e.MaxCapacity
}

// AvailableSpots returns nil for unlimited events and never goes below zero.
func (e Event) AvailableSpots() *int {
	if e.MaxCapacity == nil {
		return nil
	}
	spots := *e.MaxCapacity - e.RegistrationCount
	if spots < 0 {
		spots = 0
	}
	return &spots
}

type Registration struct {
	ID           int64
	EventID      int64
	UserID       int64
	Notes        *string
	RegisteredAt time.Time
}

type Filters struct {
	Category string
	Status   string
}

type Pagination struct {
	Skip  int
	Limit int
}

type CreateParams struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description"`
	Category    string    `json:"category" validate:"omitempty,max=100"`
	ImageURL    string    `json:"image_url" validate:"omitempty,max=500"`
	Location    string    `json:"location" validate:"omitempty,max=255"`
	Date        time.Time `json:"date" validate:"required"`
	Status      string    `json:"status" validate:"omitempty,max=50"`
	MaxCapacity *int      `json:"max_capacity" validate:"omitempty,min=1,max=2147483647"`
}

// UpdateParams applies only the non-nil fields. ClearMaxCapacity wins over
// MaxCapacity and makes the event unlimited.
type UpdateParams struct {
	Title            *string    `json:"title" validate:"omitempty,max=255"`
	Description      *string    `json:"description"`
	Category         *string    `json:"category" validate:"omitempty,max=100"`
	ImageURL         *string    `json:"image_url" validate:"omitempty,max=500"`
	Location         *string    `json:"location" validate:"omitempty,max=255"`
	Date             *time.Time `json:"date"`
	Status           *string    `json:"status" validate:"omitempty,max=50"`
	MaxCapacity      *int       `json:"max_capacity" validate:"omitempty,min=1,max=2147483647"`
	ClearMaxCapacity bool       `json:"clear_max_capacity"`
}

func (p UpdateParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.ImageURL == nil &&
		p.Location == nil && p.Date == nil && p.Status == nil && p.MaxCapacity == nil && !p.ClearMaxCapacity
}

type SyncResult struct {
	Event    *Event
	Previous int
	Current  int
	Changed  bool
}

// Repository is implemented by each storage backend. Methods called through
// the Repository handed to WithTx run on the same transaction.
type Repository interface {
	Create(ctx context.Context, params CreateParams, createdBy int64) (*Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	// GetForUpdate loads the event and holds a write lock on its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Event, error)
	List(ctx context.Context, filters Filters, page Pagination) ([]Event, error)
	ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Event, error)
	Delete(ctx context.Context, id int64) error

	FindRegistration(ctx context.Context, eventID, userID int64) (*Registration, error)
	CreateRegistration(ctx context.Context, eventID, userID int64, notes *string) (*Registration, error)
	DeleteRegistration(ctx context.Context, eventID, userID int64) (bool, error)
	DeleteRegistrations(ctx context.Context, eventID int64) (int64, error)
	ListRegistrations(ctx context.Context, eventID int64, page Pagination) ([]Registration, error)
	CountRegistrations(ctx context.Context, eventID int64) (int, error)
	RegisteredEventIDs(ctx context.Context, userID int64, eventIDs []int64) (map[int64]bool, error)

	// IncrementRegistrationCount bumps the counter only while the event has
	// room and reports whether a row was updated.
	IncrementRegistrationCount(ctx context.Context, eventID int64) (bool, error)
	DecrementRegistrationCount(ctx context.Context, eventID int64) error
	SetRegistrationCount(ctx context.Context, eventID int64, count int) error

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
