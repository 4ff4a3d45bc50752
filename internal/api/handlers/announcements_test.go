package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/domain/announcements"
)

type stubAnnouncementService struct {
	createFn     func(params announcements.CreateParams, createdBy int64) (*announcements.Announcement, error)
	getFn        func(id int64) (*announcements.Announcement, error)
	listFn       func(filters announcements.Filters, page announcements.Pagination) ([]announcements.Announcement, error)
	byCategoryFn func(category string, page announcements.Pagination) ([]announcements.Announcement, error)
	highFn       func(page announcements.Pagination) ([]announcements.Announcement, error)
	updateFn     func(id int64, params announcements.UpdateParams) (*announcements.Announcement, error)
	deleteFn     func(id int64) error
}

func (s stubAnnouncementService) Create(_ context.Context, params announcements.CreateParams, createdBy int64) (*announcements.Announcement, error) {
	if s.createFn == nil {
		return nil, errNotStubbed
	}
	return s.createFn(params, createdBy)
}

func (s stubAnnouncementService) Get(_ context.Context, id int64) (*announcements.Announcement, error) {
	if s.getFn == nil {
		return nil, errNotStubbed
	}
	return s.getFn(id)
}

func (s stubAnnouncementService) List(_ context.Context, filters announcements.Filters, page announcements.Pagination) ([]announcements.Announcement, error) {
	if s.listFn == nil {
		return nil, errNotStubbed
	}
	return s.listFn(filters, page)
}

func (s stubAnnouncementService) ListByCategory(_ context.Context, category string, page announcements.Pagination) ([]announcements.Announcement, error) {
	if s.byCategoryFn == nil {
		return nil, errNotStubbed
	}
	return s.byCategoryFn(category, page)
}

func (s stubAnnouncementService) ListHighPriority(_ context.Context, page announcements.Pagination) ([]announcements.Announcement, error) {
	if s.highFn == nil {
		return nil, errNotStubbed
	}
	return s.highFn(page)
}

func (s stubAnnouncementService) Update(_ context.Context, id int64, params announcements.UpdateParams) (*announcements.Announcement, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(id, params)
}

func (s stubAnnouncementService) Delete(_ context.Context, id int64) error {
	if s.deleteFn == nil {
		return errNotStubbed
	}
	return s.deleteFn(id)
}

var announcementDate = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

func TestAnnouncementsList(t *testing.T) {
	svc := stubAnnouncementService{
		listFn: func(filters announcements.Filters, page announcements.Pagination) ([]announcements.Announcement, error) {
			require.Equal(t, announcements.Filters{Category: "exam", Priority: "high"}, filters)
			require.Equal(t, 20, page.Limit)
			return []announcements.Announcement{
				{ID: 2, Title: "Midterm room change", Priority: "high", Category: "exam", Date: announcementDate, CreatorName: "Somchai Admin"},
			}, nil
		},
	}
	res := httptest.NewRecorder()
	NewAnnouncementsHandler(svc, nil, "test").List(res, newRequest(http.MethodGet, "/api/v1/announcements?category=exam&priority=HIGH&limit=20", "", 0, ""))

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[[]AnnouncementResponse](t, res)
	require.Len(t, body, 1)
	require.Equal(t, "Somchai Admin", body[0].CreatorName)
}

func TestAnnouncementsListRejectsPriority(t *testing.T) {
	res := httptest.NewRecorder()
	NewAnnouncementsHandler(stubAnnouncementService{}, nil, "test").List(res, newRequest(http.MethodGet, "/api/v1/announcements?priority=urgent", "", 0, ""))
	body := requireProblem(t, res, http.StatusBadRequest, problem.TypeValidation)
	require.Contains(t, body.Errors, "priority")
}

func TestAnnouncementsByCategoryAndHighPriority(t *testing.T) {
	var gotCategory string
	svc := stubAnnouncementService{
		byCategoryFn: func(category string, page announcements.Pagination) ([]announcements.Announcement, error) {
			gotCategory = category
			return []announcements.Announcement{}, nil
		},
		highFn: func(page announcements.Pagination) ([]announcements.Announcement, error) {
			return []announcements.Announcement{{ID: 9, Priority: "high"}}, nil
		},
	}
	h := NewAnnouncementsHandler(svc, nil, "test")

	req := newRequest(http.MethodGet, "/api/v1/announcements/category/library", "", 0, "")
	req.SetPathValue("category", "library")
	res := httptest.NewRecorder()
	h.ByCategory(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "library", gotCategory)
	require.Empty(t, decodeBody[[]AnnouncementResponse](t, res))

	res = httptest.NewRecorder()
	h.HighPriority(res, newRequest(http.MethodGet, "/api/v1/announcements/priority/high", "", 0, ""))
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, decodeBody[[]AnnouncementResponse](t, res), 1)
}

func TestAnnouncementsGetNotFound(t *testing.T) {
	svc := stubAnnouncementService{getFn: func(int64) (*announcements.Announcement, error) { return nil, announcements.ErrNotFound }}
	req := newRequest(http.MethodGet, "/api/v1/announcements/3", "", 0, "")
	req.SetPathValue("id", "3")
	res := httptest.NewRecorder()
	NewAnnouncementsHandler(svc, nil, "test").Get(res, req)
	requireProblem(t, res, http.StatusNotFound, problem.TypeNotFound)
}

func TestAnnouncementsCreate(t *testing.T) {
	svc := stubAnnouncementService{
		createFn: func(params announcements.CreateParams, createdBy int64) (*announcements.Announcement, error) {
			if params.Content == "" {
				return nil, announcements.ValidationError{Field: "content", Message: "is required"}
			}
			return &announcements.Announcement{
				ID: 5, Title: params.Title, Content: params.Content, Category: params.Category,
				Priority: "medium", Date: announcementDate, CreatedBy: createdBy, CreatorName: "Somchai Admin",
			}, nil
		},
	}
	h := NewAnnouncementsHandler(svc, nil, "test")

	res := httptest.NewRecorder()
	h.Create(res, newRequest(http.MethodPost, "/api/v1/announcements",
		`{"title":"Library hours","content":"Open until 22:00","category":"library"}`, 1, "admin"))
	require.Equal(t, http.StatusCreated, res.Code)
	body := decodeBody[AnnouncementResponse](t, res)
	require.Equal(t, "medium", body.Priority)
	require.Equal(t, int64(1), body.CreatedBy)

	res = httptest.NewRecorder()
	h.Create(res, newRequest(http.MethodPost, "/api/v1/announcements", `{"title":"Library hours","category":"library"}`, 1, "admin"))
	requireProblem(t, res, http.StatusBadRequest, problem.TypeValidation)
}

func TestAnnouncementsUpdateAndDelete(t *testing.T) {
	svc := stubAnnouncementService{
		updateFn: func(id int64, params announcements.UpdateParams) (*announcements.Announcement, error) {
			require.NotNil(t, params.Priority)
			return &announcements.Announcement{ID: id, Priority: *params.Priority}, nil
		},
		deleteFn: func(id int64) error {
			if id == 404 {
				return announcements.ErrNotFound
			}
			return nil
		},
	}
	h := NewAnnouncementsHandler(svc, nil, "test")

	req := newRequest(http.MethodPut, "/api/v1/announcements/5", `{"priority":"low"}`, 1, "admin")
	req.SetPathValue("id", "5")
	res := httptest.NewRecorder()
	h.Update(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "low", decodeBody[AnnouncementResponse](t, res).Priority)

	req = newRequest(http.MethodDelete, "/api/v1/announcements/5", "", 1, "admin")
	req.SetPathValue("id", "5")
	res = httptest.NewRecorder()
	h.Delete(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req = newRequest(http.MethodDelete, "/api/v1/announcements/404", "", 1, "admin")
	req.SetPathValue("id", "404")
	res = httptest.NewRecorder()
	h.Delete(res, req)
	requireProblem(t, res, http.StatusNotFound, problem.TypeNotFound)
}
