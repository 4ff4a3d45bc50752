package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/api/middleware"
	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/domain/events"
)

var errNotStubbed = errors.New("not stubbed")

type stubEventService struct {
	createFn     func(params events.CreateParams, createdBy int64) (*events.Event, error)
	getFn        func(id int64) (*events.Event, error)
	listFn       func(filters events.Filters, page events.Pagination) ([]events.Event, error)
	updateFn     func(id int64, params events.UpdateParams) (*events.Event, error)
	deleteFn     func(id int64) (int64, error)
	registeredFn func(eventID, userID int64) (bool, error)
	idsFn        func(userID int64, ids []int64) (map[int64]bool, error)
	registerFn   func(eventID, userID int64, notes *string) (*events.Registration, error)
	unregisterFn func(eventID, userID int64) error
	listRegsFn   func(eventID int64, page events.Pagination) ([]events.Registration, error)
	syncFn       func(eventID int64) (*events.SyncResult, error)
	syncAllFn    func() (int, error)
}

func (s stubEventService) CreateEvent(_ context.Context, params events.CreateParams, createdBy int64) (*events.Event, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(params, createdBy)
}

func (s stubEventService) GetEvent(_ context.Context, id int64) (*events.Event, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(id)
}

func (s stubEventService) ListEvents(_ context.Context, filters events.Filters, page events.Pagination) ([]events.Event, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(filters, page)
}

func (s stubEventService) UpdateEvent(_ context.Context, id int64, params events.UpdateParams) (*events.Event, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(id, params)
}

func (s stubEventService) DeleteEvent(_ context.Context, id int64) (int64, error) {
	if s.deleteFn == nil {
		return 0, errNotStubbed
	}
	return s.deleteFn(id)
}

func (s stubEventService) IsUserRegistered(_ context.Context, eventID, userID int64) (bool, error) {
	if s.registeredFn == nil {
		return false, nil
	}
	return s.registeredFn(eventID, userID)
}

func (s stubEventService) RegisteredEventIDs(_ context.Context, userID int64, ids []int64) (map[int64]bool, error) {
	if s.idsFn == nil {
		return map[int64]bool{}, nil
	}
	return s.idsFn(userID, ids)
}

func (s stubEventService) RegisterUserForEvent(_ context.Context, eventID, userID int64, notes *string) (*events.Registration, error) {
	if s.registerFn == nil {
		return nil, errNotStubbed
	}
	return s.registerFn(eventID, userID, notes)
}

func (s stubEventService) UnregisterUserFromEvent(_ context.Context, eventID, userID int64) error {
	if s.unregisterFn == nil {
		return errNotStubbed
	}
	return s.unregisterFn(eventID, userID)
}

func (s stubEventService) ListRegistrations(_ context.Context, eventID int64, page events.Pagination) ([]events.Registration, error) {
	if s.listRegsFn == nil {
		return nil, errNotStubbed
	}
	return s.listRegsFn(eventID, page)
}

func (s stubEventService) SyncRegistrationCount(_ context.Context, eventID int64) (*events.SyncResult, error) {
	if s.syncFn == nil {
		return nil, errNotStubbed
	}
	return s.syncFn(eventID)
}

func (s stubEventService) SyncAllRegistrationCounts(_ context.Context) (int, error) {
	if s.syncAllFn == nil {
		return 0, errNotStubbed
	}
	return s.syncAllFn()
}

// newRequest builds a request authenticated as userID with the given role.
// A zero userID leaves the request anonymous.
func newRequest(method, target, body string, userID int64, role string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID > 0 {
		claims := &auth.Claims{Role: role, Type: auth.TokenTypeAccess}
		claims.Subject = strconv.FormatInt(userID, 10)
		claims.ID = "jti-test"
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	}
	return req
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func requireProblem(t *testing.T, res *httptest.ResponseRecorder, status int, typ string) problem.ProblemDetails {
	t.Helper()
	require.Equal(t, status, res.Code)
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	body := decodeBody[problem.ProblemDetails](t, res)
	require.Equal(t, typ, body.Type)
	return body
}

func intPtr(v int) *int {
	return &v
}
