package users

import (
	"context"
	"strings"
	"time"
)

type User struct {
	ID              int64
	StudentID       string
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	ProfileImageURL string
	Role            string
	Faculty         string
	Department      string
	Major           string
	Curriculum      string
	EducationLevel  string
	Campus          string
	PasswordHash    string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type CreateParams struct {
	StudentID      string
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	Role           string
	Faculty        string
	Department     string
	Major          string
	Curriculum     string
	EducationLevel string
	Campus         string
	PasswordHash   string
}

// ProfileUpdate applies only the non-nil fields.
type ProfileUpdate struct {
	StudentID       *string `json:"student_id" validate:"omitempty,max=20"`
	FirstName       *string `json:"first_name" validate:"omitempty,max=100"`
	LastName        *string `json:"last_name" validate:"omitempty,max=100"`
	Email           *string `json:"email" validate:"omitempty,email,max=255"`
	PhoneNumber     *string `json:"phone_number" validate:"omitempty,max=20"`
	ProfileImageURL *string `json:"profile_image_url" validate:"omitempty,max=500"`
	Role            *string `json:"role" validate:"omitempty,oneof=user admin"`
	Faculty         *string `json:"faculty" validate:"omitempty,max=100"`
	Department      *string `json:"department" validate:"omitempty,max=100"`
	Major           *string `json:"major" validate:"omitempty,max=100"`
	Curriculum      *string `json:"curriculum" validate:"omitempty,max=100"`
	EducationLevel  *string `json:"education_level" validate:"omitempty,max=100"`
	Campus          *string `json:"campus" validate:"omitempty,max=100"`
}

type Repository interface {
	// Create returns ErrEmailTaken when the email already exists.
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*User, error)
	// FullNames resolves display names for a set of user ids. Unknown ids
	// are left out of the result.
	FullNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// TokenRepository persists revoked token ids until they expire.
type TokenRepository interface {
	// Revoke is idempotent. It reports false when jti was already revoked,
	// so exactly one concurrent caller sees true.
	Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
