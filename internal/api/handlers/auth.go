package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/unisphere-campus/server/internal/api/middleware"
	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/domain/users"
)

// AuthService is the account surface used by AuthHandler.
type AuthService interface {
	Register(ctx context.Context, req users.RegisterRequest) (*users.Session, error)
	Login(ctx context.Context, email, password string) (*users.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*users.Session, error)
	Logout(ctx context.Context, access *auth.Claims, refreshToken string) error
	GetUser(ctx context.Context, id int64) (*users.User, error)
	UpdateProfile(ctx context.Context, actor *users.User, update users.ProfileUpdate) (*users.User, error)
}

type AuthHandler struct {
	service AuthService
	env     string
}

func NewAuthHandler(service AuthService, env string) *AuthHandler {
	return &AuthHandler{service: service, env: env}
}

type UserResponse struct {
	ID              int64     `json:"id"`
	StudentID       string    `json:"student_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	PhoneNumber     string    `json:"phone_number"`
	ProfileImageURL string    `json:"profile_image_url"`
	Role            string    `json:"role"`
	Faculty         string    `json:"faculty"`
	Department      string    `json:"department"`
	Major           string    `json:"major"`
	Curriculum      string    `json:"curriculum"`
	EducationLevel  string    `json:"education_level"`
	Campus          string    `json:"campus"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SessionResponse struct {
	User  UserResponse   `json:"user"`
	Token auth.TokenPair `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func toUserResponse(u *users.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		StudentID:       u.StudentID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		PhoneNumber:     u.PhoneNumber,
		ProfileImageURL: u.ProfileImageURL,
		Role:            u.Role,
		Faculty:         u.Faculty,
		Department:      u.Department,
		Major:           u.Major,
		Curriculum:      u.Curriculum,
		EducationLevel:  u.EducationLevel,
		Campus:          u.Campus,
		IsActive:        u.IsActive,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func toSessionResponse(s *users.Session) SessionResponse {
	return SessionResponse{User: toUserResponse(s.User), Token: s.Tokens}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}

	session, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request",
			errors.New("email and password are required"), h.env)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request",
			errors.New("refresh_token is required"), h.env)
		return
	}

	session, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Logout handles POST /api/v1/auth/logout. The body is optional.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		requireUser(w, r)
		return
	}

	var req refreshRequest
	if data, err := readBody(r); err == nil {
		if err := unmarshalBody(data, &req); err != nil {
			writeBodyError(w, r, err, h.env)
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(w, r, err, h.env)
		return
	}

	if err := h.service.Logout(r.Context(), claims, req.RefreshToken); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LogoutResponse{Message: "Successfully logged out", Success: true})
}

// Me handles GET /api/v1/auth/me and GET /api/v1/auth/profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateProfile handles PUT /api/v1/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var update users.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}

	actor, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.service.UpdateProfile(r.Context(), actor, update)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// EducationOptions handles GET /api/v1/auth/education-options.
func (h *AuthHandler) EducationOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, users.DefaultEducationOptions())
}

func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr users.ValidationError
	switch {
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.env,
			problem.WithDetail(validationErr.Message), problem.WithFieldError(validationErr.Field, validationErr.Message))
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Email already registered", err, h.env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.env,
			problem.WithDetail("Invalid email or password"))
	case errors.Is(err, users.ErrInactive):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.env,
			problem.WithDetail("User account is inactive"))
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken), errors.Is(err, users.ErrTokenRevoked):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.env,
			problem.WithDetail("Could not validate credentials"))
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "User not found", err, h.env)
	default:
		serverError(w, r, err, h.env)
	}
}
