package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, res *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	var body ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func TestWriteClientErrorKeepsDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/7/register", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusConflict, TypeConflict, "Event is full", errors.New("event is at capacity"), "production")

	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	require.Equal(t, http.StatusConflict, res.Code)
	body := decode(t, res)
	require.Equal(t, "event is at capacity", body.Detail)
	require.Equal(t, "/api/v1/events/7/register", body.Instance)
	require.Equal(t, TypeConflict, body.Type)
}

func TestWriteServerErrorDetailByEnvironment(t *testing.T) {
	cases := []struct {
		env  string
		want string
	}{
		{"development", "pool exhausted"},
		{"test", "pool exhausted"},
		{"production", http.StatusText(http.StatusInternalServerError)},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			res := httptest.NewRecorder()
			Write(res, req, http.StatusInternalServerError, TypeServerError, "Server error", errors.New("pool exhausted"), tc.env)
			require.Equal(t, tc.want, decode(t, res).Detail)
		})
	}
}

func TestWriteOptions(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", errors.New("ignored"), "test",
		WithDetail("Passwords do not match"), WithFieldError("confirm_password", "must match password"), WithFieldError("", "dropped"))

	body := decode(t, res)
	require.Equal(t, "Passwords do not match", body.Detail)
	require.Equal(t, map[string]any{"confirm_password": "must match password"}, body.Errors)
}
