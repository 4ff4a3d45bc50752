package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/sanitize"
	"github.com/unisphere-campus/server/internal/validation"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("user account is inactive")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type PersonalInfo struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
}

type EducationInfo struct {
	StudentID      string `json:"student_id" validate:"omitempty,max=20"`
	EducationLevel string `json:"education_level" validate:"omitempty,max=100"`
	Campus         string `json:"campus" validate:"omitempty,max=100"`
	Faculty        string `json:"faculty" validate:"omitempty,max=100"`
	Major          string `json:"major" validate:"omitempty,max=100"`
	Curriculum     string `json:"curriculum" validate:"omitempty,max=100"`
	Department     string `json:"department" validate:"omitempty,max=100"`
}

type AccountInfo struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type RegisterRequest struct {
	PersonalInfo  PersonalInfo  `json:"personal_info"`
	EducationInfo EducationInfo `json:"education_info"`
	AccountInfo   AccountInfo   `json:"account_info"`
}

// Session is what register, login and refresh hand back to the client.
type Session struct {
	User   *User
	Tokens auth.TokenPair
}

// Notifier sends account emails. Failures are logged, never returned to
// the caller.
type Notifier interface {
	SendWelcome(ctx context.Context, user User) error
}

type Service struct {
	repo     Repository
	tokens   TokenRepository
	jwt      *auth.JWTManager
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, tokens TokenRepository, jwt *auth.JWTManager, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		jwt:      jwt,
		notifier: notifier,
		logger:   logger.With().Str("component", "users").Logger(),
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req = normalizeRegister(req)
	if err := validation.Struct(req); err != nil {
		return nil, toValidationError(err)
	}
	if req.AccountInfo.Password != req.AccountInfo.ConfirmPassword {
		return nil, ValidationError{Field: "confirm_password", Message: "Password and confirm password do not match"}
	}

	hash, err := auth.HashPassword(req.AccountInfo.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, ValidationError{Field: "password", Message: err.Error()}
		}
		return nil, err
	}

	user, err := s.repo.Create(ctx, CreateParams{
		StudentID:      req.EducationInfo.StudentID,
		FirstName:      req.PersonalInfo.FirstName,
		LastName:       req.PersonalInfo.LastName,
		Email:          req.AccountInfo.Email,
		PhoneNumber:    req.PersonalInfo.PhoneNumber,
		Role:           string(auth.RoleUser),
		Faculty:        req.EducationInfo.Faculty,
		Department:     req.EducationInfo.Department,
		Major:          req.EducationInfo.Major,
		Curriculum:     req.EducationInfo.Curriculum,
		EducationLevel: req.EducationInfo.EducationLevel,
		Campus:         req.EducationInfo.Campus,
		PasswordHash:   hash,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.jwt.GeneratePair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	if s.notifier != nil {
		if err := s.notifier.SendWelcome(ctx, *user); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("welcome email not sent")
		}
	}
	return &Session{User: user, Tokens: tokens}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactive
	}

	tokens, err := s.jwt.GeneratePair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &Session{User: user, Tokens: tokens}, nil
}

// Authenticate validates an access token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwt.Validate(token, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked so it cannot be replayed; when several requests race with the same
// token only the one whose revocation lands gets a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.jwt.Validate(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactive
	}

	claimed, err := s.tokens.Revoke(ctx, claims.ID, userID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !claimed {
		return nil, ErrTokenRevoked
	}
	tokens, err := s.jwt.GeneratePair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &Session{User: user, Tokens: tokens}, nil
}

// Logout revokes the access token and, when given, the caller's refresh
// token. An invalid refresh token is ignored.
func (s *Service) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	userID, err := access.UserID()
	if err != nil {
		return err
	}
	if _, err := s.tokens.Revoke(ctx, access.ID, userID, access.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}

	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	refresh, err := s.jwt.Validate(refreshToken, auth.TokenTypeRefresh)
	if err != nil || refresh.Subject != access.Subject {
		s.logger.Debug().Int64("user_id", userID).Msg("logout ignored invalid refresh token")
		return nil
	}
	if _, err := s.tokens.Revoke(ctx, refresh.ID, userID, refresh.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// FullNames resolves display names, used to decorate announcements.
func (s *Service) FullNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	return s.repo.FullNames(ctx, ids)
}

// UpdateProfile applies a partial update to the actor's own profile. Role
// changes are dropped unless the actor is an admin.
func (s *Service) UpdateProfile(ctx context.Context, actor *User, update ProfileUpdate) (*User, error) {
	update = normalizeProfile(update)
	if update.Role != nil && !auth.IsAdmin(actor.Role) {
		s.logger.Warn().Int64("user_id", actor.ID).Msg("ignored role change from non-admin")
		update.Role = nil
	}
	if err := validation.Struct(update); err != nil {
		return nil, toValidationError(err)
	}
	if update.FirstName != nil && *update.FirstName == "" {
		return nil, ValidationError{Field: "first_name", Message: "must not be empty"}
	}
	if update.LastName != nil && *update.LastName == "" {
		return nil, ValidationError{Field: "last_name", Message: "must not be empty"}
	}
	if update.ProfileImageURL != nil {
		if err := validation.ValidateURL(*update.ProfileImageURL, "profile_image_url", false); err != nil {
			return nil, ValidationError{Field: "profile_image_url", Message: "must be an http or https URL"}
		}
	}
	return s.repo.UpdateProfile(ctx, actor.ID, update)
}

// EnsureAdmin creates the bootstrap admin account unless a user with that
// email already exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, firstName, lastName string) (bool, error) {
	email = normalizeEmail(email)
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	user, err := s.repo.Create(ctx, CreateParams{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Role:         string(auth.RoleAdmin),
		PasswordHash: hash,
	})
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info().Int64("user_id", user.ID).Str("email", email).Msg("bootstrap admin created")
	return true, nil
}

// PurgeExpiredTokens drops revocation rows whose tokens have expired anyway.
func (s *Service) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens: %w", err)
	}
	return deleted, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeRegister(req RegisterRequest) RegisterRequest {
	req.PersonalInfo.FirstName = sanitize.Text(req.PersonalInfo.FirstName)
	req.PersonalInfo.LastName = sanitize.Text(req.PersonalInfo.LastName)
	req.PersonalInfo.PhoneNumber = sanitize.Text(req.PersonalInfo.PhoneNumber)
	req.EducationInfo.StudentID = sanitize.Text(req.EducationInfo.StudentID)
	req.EducationInfo.EducationLevel = sanitize.Text(req.EducationInfo.EducationLevel)
	req.EducationInfo.Campus = sanitize.Text(req.EducationInfo.Campus)
	req.EducationInfo.Faculty = sanitize.Text(req.EducationInfo.Faculty)
	req.EducationInfo.Major = sanitize.Text(req.EducationInfo.Major)
	req.EducationInfo.Curriculum = sanitize.Text(req.EducationInfo.Curriculum)
	req.EducationInfo.Department = sanitize.Text(req.EducationInfo.Department)
	req.AccountInfo.Email = normalizeEmail(req.AccountInfo.Email)
	return req
}

func normalizeProfile(update ProfileUpdate) ProfileUpdate {
	update.StudentID = sanitize.OptionalText(update.StudentID)
	update.FirstName = sanitize.OptionalText(update.FirstName)
	update.LastName = sanitize.OptionalText(update.LastName)
	update.PhoneNumber = sanitize.OptionalText(update.PhoneNumber)
	update.Faculty = sanitize.OptionalText(update.Faculty)
	update.Department = sanitize.OptionalText(update.Department)
	update.Major = sanitize.OptionalText(update.Major)
	update.Curriculum = sanitize.OptionalText(update.Curriculum)
	update.EducationLevel = sanitize.OptionalText(update.EducationLevel)
	update.Campus = sanitize.OptionalText(update.Campus)
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		update.Email = &email
	}
	if update.ProfileImageURL != nil {
		trimmed := strings.TrimSpace(*update.ProfileImageURL)
		update.ProfileImageURL = &trimmed
	}
	if update.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*update.Role))
		update.Role = &role
	}
	return update
}

func toValidationError(err error) error {
	var fieldErr validation.FieldError
	if errors.As(err, &fieldErr) {
		return ValidationError{Field: fieldErr.Field, Message: fieldErr.Message}
	}
	return ValidationError{Message: err.Error()}
}
