package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/unisphere-campus/server/internal/api/middleware"
	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/audit"
	"github.com/unisphere-campus/server/internal/domain/events"
)

// EventService is the Event Capacity Service surface used by the API.
type EventService interface {
	CreateEvent(ctx context.Context, params events.CreateParams, createdBy int64) (*events.Event, error)
	GetEvent(ctx context.Context, id int64) (*events.Event, error)
	ListEvents(ctx context.Context, filters events.Filters, page events.Pagination) ([]events.Event, error)
	UpdateEvent(ctx context.Context, id int64, params events.UpdateParams) (*events.Event, error)
	DeleteEvent(ctx context.Context, id int64) (int64, error)
	IsUserRegistered(ctx context.Context, eventID, userID int64) (bool, error)
	RegisteredEventIDs(ctx context.Context, userID int64, eventIDs []int64) (map[int64]bool, error)
	RegisterUserForEvent(ctx context.Context, eventID, userID int64, notes *string) (*events.Registration, error)
	UnregisterUserFromEvent(ctx context.Context, eventID, userID int64) error
	ListRegistrations(ctx context.Context, eventID int64, page events.Pagination) ([]events.Registration, error)
	SyncRegistrationCount(ctx context.Context, eventID int64) (*events.SyncResult, error)
	SyncAllRegistrationCounts(ctx context.Context) (int, error)
}

// RegistrationNotifier is told about successful registrations. It must not
// block the response for long; failures are only logged.
type RegistrationNotifier interface {
	RegistrationConfirmed(ctx context.Context, userID int64, event events.Event) error
}

type EventsHandler struct {
	service  EventService
	notifier RegistrationNotifier
	audit    *audit.Logger
	env      string
}

func NewEventsHandler(service EventService, notifier RegistrationNotifier, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{service: service, notifier: notifier, audit: auditLogger, env: env}
}

type EventResponse struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	ImageURL          string    `json:"image_url"`
	Location          string    `json:"location"`
	Date              time.Time `json:"date"`
	Status            string    `json:"status"`
	MaxCapacity       *int      `json:"max_capacity"`
	RegistrationCount int       `json:"registration_count"`
	CreatedBy         int64     `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	IsRegistered      bool      `json:"is_registered"`
	IsFull            bool      `json:"is_full"`
	AvailableSpots    *int      `json:"available_spots"`
}

type RegistrationResponse struct {
	ID           int64     `json:"id"`
	EventID      int64     `json:"event_id"`
	UserID       int64     `json:"user_id"`
	Notes        *string   `json:"notes"`
	RegisteredAt time.Time `json:"registered_at"`
}

type registerRequest struct {
	Notes *string `json:"notes"`
}

type syncEventSummary struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	MaxCapacity       *int   `json:"max_capacity"`
	RegistrationCount int    `json:"registration_count"`
	IsFull            bool   `json:"is_full"`
	AvailableSpots    *int   `json:"available_spots"`
}

type SyncResponse struct {
	Message       string           `json:"message"`
	Event         syncEventSummary `json:"event"`
	PreviousCount int              `json:"previous_count"`
	Changed       bool             `json:"changed"`
}

type SyncAllResponse struct {
	Message      string `json:"message"`
	SyncedEvents int    `json:"synced_events"`
}

func toEventResponse(e events.Event, registered bool) EventResponse {
	view := events.NewCapacityView(e)
	return EventResponse{
		ID:                e.ID,
		Title:             e.Title,
		Description:       e.Description,
		Category:          e.Category,
		ImageURL:          e.ImageURL,
		Location:          e.Location,
		Date:              e.Date,
		Status:            e.Status,
		MaxCapacity:       e.MaxCapacity,
		RegistrationCount: e.RegistrationCount,
		CreatedBy:         e.CreatedBy,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		IsRegistered:      registered,
		IsFull:            view.IsFull,
		AvailableSpots:    view.AvailableSpots,
	}
}

func toRegistrationResponse(reg events.Registration) RegistrationResponse {
	return RegistrationResponse{
		ID:           reg.ID,
		EventID:      reg.EventID,
		UserID:       reg.UserID,
		Notes:        reg.Notes,
		RegisteredAt: reg.RegisteredAt,
	}
}

// List handles GET /api/v1/events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	filters, page, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.service.ListEvents(r.Context(), filters, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	registered, err := h.service.RegisteredEventIDs(r.Context(), userID, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]EventResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toEventResponse(item, registered[item.ID]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	registered, err := h.service.IsUserRegistered(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(*event, registered))
}

// Create handles POST /api/v1/events (admin).
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var params events.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), params, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionEventCreate, "event", event.ID, map[string]string{"title": event.Title})
	writeJSON(w, http.StatusCreated, toEventResponse(*event, false))
}

// Update handles PUT and PATCH /api/v1/events/{id} (admin). Only the fields
// present in the body change; "max_capacity": null removes the cap.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}

	data, err := readBody(r)
	if err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	var params events.UpdateParams
	if err := unmarshalBody(data, &params); err != nil {
		writeBodyError(w, r, err, h.env)
		return
	}
	var raw struct {
		MaxCapacity json.RawMessage `json:"max_capacity"`
	}
	if err := json.Unmarshal(data, &raw); err == nil && bytes.Equal(bytes.TrimSpace(raw.MaxCapacity), []byte("null")) {
		params.ClearMaxCapacity = true
	}

	event, err := h.service.UpdateEvent(r.Context(), id, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	registered, err := h.service.IsUserRegistered(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionEventUpdate, "event", id, nil)
	writeJSON(w, http.StatusOK, toEventResponse(*event, registered))
}

// Delete handles DELETE /api/v1/events/{id} (admin).
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}

	removed, err := h.service.DeleteEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionEventDelete, "event", id,
		map[string]string{"registrations_removed": strconv.FormatInt(removed, 10)})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Event deleted successfully"})
}

// Register handles POST /api/v1/events/{id}/register. The body is optional.
func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}

	var req registerRequest
	if data, err := readBody(r); err == nil {
		if err := unmarshalBody(data, &req); err != nil {
			writeBodyError(w, r, err, h.env)
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(w, r, err, h.env)
		return
	}

	registration, err := h.service.RegisterUserForEvent(r.Context(), id, userID, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.notifyRegistration(r, userID, id)
	writeJSON(w, http.StatusCreated, toRegistrationResponse(*registration))
}

func (h *EventsHandler) notifyRegistration(r *http.Request, userID, eventID int64) {
	if h.notifier == nil {
		return
	}
	logger := middleware.LoggerFromContext(r.Context())
	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		logger.Warn().Err(err).Int64("event_id", eventID).Msg("registration confirmation skipped")
		return
	}
	if err := h.notifier.RegistrationConfirmed(r.Context(), userID, *event); err != nil {
		logger.Warn().Err(err).Int64("event_id", eventID).Msg("registration confirmation not sent")
	}
}

// Unregister handles DELETE /api/v1/events/{id}/register.
func (h *EventsHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}

	if err := h.service.UnregisterUserFromEvent(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Successfully unregistered from event"})
}

// Registrations handles GET /api/v1/events/{id}/registrations (admin).
func (h *EventsHandler) Registrations(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}
	page, err := events.ParsePagination(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	regs, err := h.service.ListRegistrations(r.Context(), id, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]RegistrationResponse, 0, len(regs))
	for _, reg := range regs {
		out = append(out, toRegistrationResponse(reg))
	}
	writeJSON(w, http.StatusOK, out)
}

// SyncCount handles POST /api/v1/events/{id}/sync-registration-count (admin).
func (h *EventsHandler) SyncCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := requireID(w, r, h.env)
	if !ok {
		return
	}

	result, err := h.service.SyncRegistrationCount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionEventSyncCount, "event", id, map[string]string{
		"previous_count": strconv.Itoa(result.Previous),
		"current_count":  strconv.Itoa(result.Current),
	})

	message := "Registration count is already accurate"
	if result.Changed {
		message = fmt.Sprintf("Registration count corrected from %d to %d", result.Previous, result.Current)
	}
	view := events.NewCapacityView(*result.Event)
	writeJSON(w, http.StatusOK, SyncResponse{
		Message: message,
		Event: syncEventSummary{
			ID:                result.Event.ID,
			Title:             result.Event.Title,
			MaxCapacity:       result.Event.MaxCapacity,
			RegistrationCount: result.Event.RegistrationCount,
			IsFull:            view.IsFull,
			AvailableSpots:    view.AvailableSpots,
		},
		PreviousCount: result.Previous,
		Changed:       result.Changed,
	})
}

// SyncAll handles POST /api/v1/events/sync-all-registration-counts (admin).
func (h *EventsHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	synced, err := h.service.SyncAllRegistrationCounts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, userID, audit.ActionEventSyncAllCounts, "event", 0,
		map[string]string{"synced_events": strconv.Itoa(synced)})
	writeJSON(w, http.StatusOK, SyncAllResponse{
		Message:      fmt.Sprintf("Synchronized registration counts for %d events", synced),
		SyncedEvents: synced,
	})
}

func (h *EventsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr events.ValidationError
		filterErr     events.FilterError
	)
	switch {
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.env,
			problem.WithFieldError(validationErr.Field, validationErr.Message))
	case errors.As(err, &filterErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid query", err, h.env,
			problem.WithFieldError(filterErr.Field, filterErr.Message))
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, h.env)
	case errors.Is(err, events.ErrNotRegistered):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Registration not found", err, h.env)
	case errors.Is(err, events.ErrAlreadyRegistered):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Already registered", err, h.env)
	case errors.Is(err, events.ErrCapacityExceeded):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Event is full", err, h.env)
	default:
		serverError(w, r, err, h.env)
	}
}
