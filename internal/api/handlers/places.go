package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/domain/places"
)

type PlaceService interface {
	Create(ctx context.Context, userID int64, params places.CreateParams) (*places.Place, error)
	Get(ctx context.Context, id, userID int64) (*places.Place, error)
	List(ctx context.Context, userID int64, page places.Pagination) (places.ListResult, error)
	Update(ctx context.Context, id, userID int64, params places.UpdateParams) (*places.Place, error)
	Delete(ctx context.Context, id, userID int64) error
}

// PlacesHandler serves the caller's own saved places. Places owned by other
// users are reported as not found.
type PlacesHandler struct {
	service PlaceService
	env     string
}

func NewPlacesHandler(service PlaceService, env string) *PlacesHandler {
	return &PlacesHandler{service: service, env: env}
}

type PlaceResponse struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Category       string         `json:"category"`
	ImageURL       string         `json:"image_url"`
	AdditionalInfo map[string]any `json:"additional_info"`
	IsFavorite     bool           `json:"is_favorite"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type PlaceListResponse struct {
	Places []PlaceResponse `json:"places"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toPlaceResponse(p places.Place) PlaceResponse {
	info := p.AdditionalInfo
	if info == nil {
		info = map[string]any{}
	}
	return PlaceResponse{
		ID:             p.ID,
		UserID:         p.UserID,
		Name:           p.Name,
		Description:    p.Description,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		Category:       p.Category,
		ImageURL:       p.ImageURL,
		AdditionalInfo: info,
		IsFavorite:     p.IsFavorite,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// Create handles POST /api/v1/user-places.
func (h *PlacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var params places.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	place, err := h.service.Create(r.Context(), userID, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlaceResponse(*place))
}

// List handles GET /api/v1/user-places.
func (h *PlacesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, err := places.ParsePagination(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.service.List(r.Context(), userID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := PlaceListResponse{
		Places: make([]PlaceResponse, 0, len(result.Places)),
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	}
	for _, place := range result.Places {
		out.Places = append(out.Places, toPlaceResponse(place))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PlacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	place, err := h.service.Get(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaceResponse(*place))
}

// Update handles PATCH /api/v1/user-places/{id}.
func (h *PlacesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	var params places.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	place, err := h.service.Update(r.Context(), id, userID, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlaceResponse(*place))
}

func (h *PlacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Place deleted successfully"})
}

func (h *PlacesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr places.ValidationError
	switch {
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.env,
			problem.WithFieldError(validationErr.Field, validationErr.Message))
	case errors.Is(err, places.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Place not found", err, h.env)
	default:
		serverError(w, r, err, h.env)
	}
}
