package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/api"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/domain/announcements"
	"github.com/unisphere-campus/server/internal/domain/events"
	"github.com/unisphere-campus/server/internal/domain/places"
	"github.com/unisphere-campus/server/internal/domain/users"
	"github.com/unisphere-campus/server/internal/storage/backend"
)

func newCampusServer(t *testing.T) (*httptest.Server, *users.Service) {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	store, err := backend.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "race.db"),
		AutoMigrate: true,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	jwt := auth.NewJWTManager("loadtest-secret-loadtest-secret-xx", 15*time.Minute, time.Hour, "unisphere")
	usersService := users.NewService(store.Users(), store.Tokens(), jwt, nil, logger)

	router := api.NewRouter(api.Dependencies{
		Config:        config.Config{Environment: "test"},
		Logger:        logger,
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
	return srv, usersService
}

func createEvent(t *testing.T, srv *httptest.Server, svc *users.Service, capacity int) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := svc.EnsureAdmin(ctx, "admin@unisphere.test", "admin-pass-123", "Campus", "Admin")
	require.NoError(t, err)
	session, err := svc.Login(ctx, "admin@unisphere.test", "admin-pass-123")
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{"title": "Hackathon kickoff", "date": "2026-12-01T18:00:00Z", "max_capacity": capacity})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/events", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+session.Tokens.AccessToken)

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	return created.ID
}

func TestSeatRaceKeepsCapacity(t *testing.T) {
	srv, svc := newCampusServer(t)
	eventID := createEvent(t, srv, svc, 3)

	lt := NewLoadTester(srv.URL, "").WithHTTPClient(srv.Client())
	result, err := lt.SeatRace(context.Background(), RaceConfig{EventID: eventID, Students: 10})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Registered)
	assert.Equal(t, 7, result.Rejected)
	assert.Zero(t, result.Errors)
	require.NotNil(t, result.MaxCapacity)
	assert.Equal(t, 3, result.RegistrationCount)
	assert.True(t, result.CapacityHeld(), result.String())
}

func TestSeatRaceValidatesConfig(t *testing.T) {
	lt := NewLoadTester("http://localhost", "")
	_, err := lt.SeatRace(context.Background(), RaceConfig{EventID: 0, Students: 5})
	require.Error(t, err)
	_, err = lt.SeatRace(context.Background(), RaceConfig{EventID: 1, Students: 0})
	require.Error(t, err)
}

func TestRaceResultCapacityHeld(t *testing.T) {
	capacity := 2
	assert.True(t, RaceResult{Registered: 2, MaxCapacity: &capacity, RegistrationCount: 2}.CapacityHeld())
	assert.False(t, RaceResult{Registered: 3, MaxCapacity: &capacity, RegistrationCount: 3}.CapacityHeld())
	assert.False(t, RaceResult{Registered: 1, RegistrationCount: 2}.CapacityHeld())
	assert.Contains(t, RaceResult{}.String(), "capacity=unlimited")
}
