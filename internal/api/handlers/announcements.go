package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/audit"
	"github.com/unisphere-campus/server/internal/domain/announcements"
)

type AnnouncementService interface {
	Create(ctx context.Context, params announcements.CreateParams, createdBy int64) (*announcements.Announcement, error)
	Get(ctx context.Context, id int64) (*announcements.Announcement, error)
	List(ctx context.Context, filters announcements.Filters, page announcements.Pagination) ([]announcements.Announcement, error)
	ListByCategory(ctx context.Context, category string, page announcements.Pagination) ([]announcements.Announcement, error)
	ListHighPriority(ctx context.Context, page announcements.Pagination) ([]announcements.Announcement, error)
	Update(ctx context.Context, id int64, params announcements.UpdateParams) (*announcements.Announcement, error)
	Delete(ctx context.Context, id int64) error
}

type AnnouncementsHandler struct {
	service AnnouncementService
	audit   *audit.Logger
	env     string
}

func NewAnnouncementsHandler(service AnnouncementService, auditLogger *audit.Logger, env string) *AnnouncementsHandler {
	return &AnnouncementsHandler{service: service, audit: auditLogger, env: env}
}

type AnnouncementResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Date        time.Time `json:"date"`
	CreatedBy   int64     `json:"created_by"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAnnouncementResponse(a announcements.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:          a.ID,
		Title:       a.Title,
		Content:     a.Content,
		Category:    a.Category,
		Priority:    a.Priority,
		Date:        a.Date,
		CreatedBy:   a.CreatedBy,
		CreatorName: a.CreatorName,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toAnnouncementList(items []announcements.Announcement) []AnnouncementResponse {
	out := make([]AnnouncementResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toAnnouncementResponse(item))
	}
	return out
}

// List handles GET /api/v1/announcements.
func (h *AnnouncementsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, page, err := announcements.ParseFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.service.List(r.Context(), filters, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnnouncementList(items))
}

// ByCategory handles GET /api/v1/announcements/category/{category}.
func (h *AnnouncementsHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	_, page, err := announcements.ParseFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.service.ListByCategory(r.Context(), strings.TrimSpace(r.PathValue("category")), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnnouncementList(items))
}

// HighPriority handles GET /api/v1/announcements/priority/high.
func (h *AnnouncementsHandler) HighPriority(w http.ResponseWriter, r *http.Request) {
	_, page, err := announcements.ParseFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.service.ListHighPriority(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnnouncementList(items))
}

func (h *AnnouncementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnnouncementResponse(*item))
}

// Create handles POST /api/v1/announcements (admin).
func (h *AnnouncementsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var params announcements.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	item, err := h.service.Create(r.Context(), params, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionAnnouncementCreate, "announcement", item.ID,
		map[string]string{"priority": item.Priority})
	writeJSON(w, http.StatusCreated, toAnnouncementResponse(*item))
}

// Update handles PUT /api/v1/announcements/{id} (admin).
func (h *AnnouncementsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	var params announcements.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	item, err := h.service.Update(r.Context(), id, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionAnnouncementUpdate, "announcement", id, nil)
	writeJSON(w, http.StatusOK, toAnnouncementResponse(*item))
}

// Delete handles DELETE /api/v1/announcements/{id} (admin).
func (h *AnnouncementsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionAnnouncementDelete, "announcement", id, nil)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Announcement deleted successfully"})
}

func (h *AnnouncementsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr announcements.ValidationError
	switch {
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.env,
			problem.WithFieldError(validationErr.Field, validationErr.Message))
	case errors.Is(err, announcements.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Announcement not found", err, h.env)
	default:
		serverError(w, r, err, h.env)
	}
}
