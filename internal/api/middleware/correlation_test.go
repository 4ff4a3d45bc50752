package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDAndRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var inner string
	handler := CorrelationID(logger)(RequestLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("X-Request-ID", "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, "req-123", res.Header().Get("X-Request-ID"))
	require.Equal(t, "req-123", inner)
	line := buf.String()
	require.Contains(t, line, `"request_id":"req-123"`)
	require.Contains(t, line, `"status":418`)
	require.Contains(t, line, `"path":"/api/v1/events"`)
}

func TestCorrelationIDGeneratesWhenMissingOrOversized(t *testing.T) {
	handler := CorrelationID(zerolog.Nop())(okHandler())
	for _, header := range []string{"", strings.Repeat("x", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Len(t, res.Header().Get("X-Request-ID"), 36)
	}
}

func TestLoggerFromContextOutsideRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NotNil(t, LoggerFromContext(req.Context()))
}

func TestRequestLogLevel(t *testing.T) {
	require.Equal(t, zerolog.ErrorLevel, requestLogLevel("/api/v1/events", http.StatusInternalServerError))
	require.Equal(t, zerolog.WarnLevel, requestLogLevel("/api/v1/events/3/register", http.StatusConflict))
	require.Equal(t, zerolog.DebugLevel, requestLogLevel("/healthz", http.StatusOK))
	require.Equal(t, zerolog.ErrorLevel, requestLogLevel("/health", http.StatusServiceUnavailable))
	require.Equal(t, zerolog.InfoLevel, requestLogLevel("/api/v1/events", http.StatusOK))
}

func TestRequestLoggingQuietsProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	handler := CorrelationID(logger)(RequestLogging()(okHandler()))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	require.Contains(t, buf.String(), `"level":"info"`)
}

func TestAcceptableRequestID(t *testing.T) {
	require.True(t, acceptableRequestID("req-123"))
	require.False(t, acceptableRequestID(""))
	require.False(t, acceptableRequestID("has space"))
	require.False(t, acceptableRequestID("line\nbreak"))
	require.False(t, acceptableRequestID(strings.Repeat("a", 129)))
}
