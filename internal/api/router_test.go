package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/api/handlers"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/domain/announcements"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/places"
	"github.com/unisphere-campus/server/internal/domain/users"
	"github.com/unisphere-campus/server/internal/storage/backend"
)

type testServer struct {
	*httptest.Server
	users *users.Service
}

func newTestServer(t *testing.T, rateLimit config.RateLimitConfig) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	store, err := backend.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "router.db"),
		AutoMigrate: true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	jwt := auth.NewJWTManager("router-test-secret-router-test-secret", 15*time.Minute, time.Hour, "unisphere")
	usersService := users.NewService(store.Users(), store.Tokens(), jwt, nil, logger)

	router := NewRouter(Dependencies{
		Config:        config.Config{Environment: "test", RateLimit: rateLimit, CORS: config.CORSConfig{AllowedOrigins: []string{"https://app.unisphere.test"}}},
		Logger:        logger,
		Build:         BuildInfo{Version: "test"},
		Authenticator: usersService,
		Auth:          usersService,
		Events:        events.NewService(store.Events(), logger),
		Announcements: announcements.NewService(store.Announcements(), usersService, logger),
		Places:        places.NewService(store.Places(), logger),
		Health:        store,
	})
	t.Cleanup(router.Close)

	srv := httptest.NewServer(router.Handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, users: usersService}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := s.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{
		"personal_info": {"first_name": "Student", "last_name": %q},
		"education_info": {},
		"account_info": {"email": %q, "password": "s3cret-pass", "confirm_password": "s3cret-pass"}
	}`, email, email)
	res, data := s.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	var session handlers.SessionResponse
	require.NoError(t, json.Unmarshal(data, &session))
	return session.Token.AccessToken
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	_, err := s.users.EnsureAdmin(context.Background(), "admin@unisphere.test", "admin-pass-123", "Campus", "Admin")
	require.NoError(t, err)
	res, data := s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"admin@unisphere.test","password":"admin-pass-123"}`)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	var session handlers.SessionResponse
	require.NoError(t, json.Unmarshal(data, &session))
	return session.Token.AccessToken
}

func TestRouterEventCapacityFlow(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})
	admin := srv.adminToken(t)
	alice := srv.register(t, "alice@unisphere.test")
	bob := srv.register(t, "bob@unisphere.test")

	res, data := srv.do(t, http.MethodPost, "/api/v1/events", alice, `{"title":"Robotics demo","date":"2026-11-20T10:00:00Z","max_capacity":1}`)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/api/v1/events", admin, `{"title":"Robotics demo","date":"2026-11-20T10:00:00Z","max_capacity":1}`)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var event handlers.EventResponse
	require.NoError(t, json.Unmarshal(data, &event))
	path := fmt.Sprintf("/api/v1/events/%d", event.ID)

	res, data = srv.do(t, http.MethodPost, path+"/register", alice, "")
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, _ = srv.do(t, http.MethodPost, path+"/register", alice, "")
	require.Equal(t, http.StatusConflict, res.StatusCode)

	res, data = srv.do(t, http.MethodPost, path+"/register", bob, `{"notes":"waitlist me"}`)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	require.Contains(t, string(data), "Event is full")

	res, data = srv.do(t, http.MethodGet, path, alice, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(data, &event))
	require.True(t, event.IsRegistered)
	require.True(t, event.IsFull)
	require.Equal(t, 0, *event.AvailableSpots)

	res, data = srv.do(t, http.MethodPatch, path, admin, `{"max_capacity": null}`)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &event))
	require.Nil(t, event.MaxCapacity)
	require.False(t, event.IsFull)

	res, data = srv.do(t, http.MethodPost, path+"/register", bob, "")
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, path+"/sync-registration-count", admin, "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var sync handlers.SyncResponse
	require.NoError(t, json.Unmarshal(data, &sync))
	require.False(t, sync.Changed)
	require.Equal(t, 2, sync.Event.RegistrationCount)

	res, data = srv.do(t, http.MethodPost, "/api/v1/events/sync-all-registration-counts", admin, "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.Contains(t, string(data), `"synced_events":1`)

	res, _ = srv.do(t, http.MethodDelete, path+"/register", alice, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = srv.do(t, http.MethodDelete, path+"/register", alice, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, data = srv.do(t, http.MethodGet, path+"/registrations", admin, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var regs []handlers.RegistrationResponse
	require.NoError(t, json.Unmarshal(data, &regs))
	require.Len(t, regs, 1)

	res, _ = srv.do(t, http.MethodDelete, path, admin, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, path, alice, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRouterConcurrentRegistrationsForLastSeat(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})
	admin := srv.adminToken(t)

	res, data := srv.do(t, http.MethodPost, "/api/v1/events", admin, `{"title":"Limited lab","date":"2026-12-01T09:00:00Z","max_capacity":3}`)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var event handlers.EventResponse
	require.NoError(t, json.Unmarshal(data, &event))

	tokens := make([]string, 8)
	for i := range tokens {
		tokens[i] = srv.register(t, fmt.Sprintf("student%d@unisphere.test", i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			res, _ := srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/register", event.ID), token, "")
			mu.Lock()
			statuses[res.StatusCode]++
			mu.Unlock()
		}(token)
	}
	wg.Wait()

	require.Equal(t, 3, statuses[http.StatusCreated])
	require.Equal(t, 5, statuses[http.StatusConflict])

	res, data = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/events/%d", event.ID), admin, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, 3, event.RegistrationCount)
}

func TestRouterRequiresAuth(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})

	for _, path := range []string{"/api/v1/events", "/api/v1/announcements", "/api/v1/user-places", "/api/v1/auth/me"} {
		res, _ := srv.do(t, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
		require.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
		require.NotEmpty(t, res.Header.Get("WWW-Authenticate"))
	}

	res, _ := srv.do(t, http.MethodGet, "/api/v1/events", "not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRouterLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})
	token := srv.register(t, "carol@unisphere.test")

	res, _ := srv.do(t, http.MethodGet, "/api/v1/auth/me", token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, data := srv.do(t, http.MethodPost, "/api/v1/auth/logout", token, "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, _ = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRouterAnnouncementsAndPlaces(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})
	admin := srv.adminToken(t)
	dana := srv.register(t, "dana@unisphere.test")
	erin := srv.register(t, "erin@unisphere.test")

	res, data := srv.do(t, http.MethodPost, "/api/v1/announcements", admin,
		`{"title":"Exam week","content":"Library open 24h","category":"library","priority":"high"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/api/v1/announcements/priority/high", dana, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list []handlers.AnnouncementResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "Campus Admin", list[0].CreatorName)

	res, data = srv.do(t, http.MethodGet, "/api/v1/announcements/category/library", dana, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)

	res, data = srv.do(t, http.MethodPost, "/api/v1/user-places", dana,
		`{"name":"Quiet desk","latitude":13.75,"longitude":100.5,"category":"study"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var place handlers.PlaceResponse
	require.NoError(t, json.Unmarshal(data, &place))

	res, _ = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/user-places/%d", place.ID), erin, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, data = srv.do(t, http.MethodGet, "/api/v1/user-places", dana, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var places handlers.PlaceListResponse
	require.NoError(t, json.Unmarshal(data, &places))
	require.Equal(t, 1, places.Total)
}

func TestRouterLoginRateLimit(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{LoginPer15Minutes: 2})

	for i := 0; i < 2; i++ {
		res, _ := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"nobody@unisphere.test","password":"wrong-pass"}`)
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	}
	res, _ := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"nobody@unisphere.test","password":"wrong-pass"}`)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("Retry-After"))
}

func TestRouterOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})

	res, data := srv.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var health handlers.HealthCheck
	require.NoError(t, json.Unmarshal(data, &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "sqlite", health.Driver)

	res, _ = srv.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = srv.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, data = srv.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(data), "unisphere_")

	res, _ = srv.do(t, http.MethodGet, "/version", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("X-Request-ID"))
	require.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
}

func TestRouterCORSPreflight(t *testing.T) {
	srv := newTestServer(t, config.RateLimitConfig{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.unisphere.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusNoContent, res.StatusCode)
	require.Equal(t, "https://app.unisphere.test", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodMux(t *testing.T) {
	mux := methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		http.MethodPost: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}),
	})

	tests := []struct {
		method      string
		status      int
		expectAllow string
	}{
		{http.MethodGet, http.StatusOK, ""},
		{http.MethodPost, http.StatusCreated, ""},
		{http.MethodPut, http.StatusMethodNotAllowed, "GET, POST"},
		{http.MethodDelete, http.StatusMethodNotAllowed, "GET, POST"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			res := httptest.NewRecorder()
			mux.ServeHTTP(res, httptest.NewRequest(tt.method, "/", nil))
			require.Equal(t, tt.status, res.Code)
			require.Equal(t, tt.expectAllow, res.Header().Get("Allow"))
		})
	}
}
