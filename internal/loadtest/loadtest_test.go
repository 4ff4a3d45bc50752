package loadtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentRPS(t *testing.T) {
	cfg := ProfileConfig{RequestsPerSecond: 20, Duration: 10 * time.Second, RampUpTime: 10 * time.Second, RampDownTime: 10 * time.Second}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"start of ramp up", 0, 1},
		{"middle of ramp up", 5 * time.Second, 10},
		{"steady state", 15 * time.Second, 20},
		{"middle of ramp down", 25 * time.Second, 10},
		{"past the end", 40 * time.Second, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, currentRPS(tt.elapsed, cfg))
		})
	}
}

func TestRunUnknownProfile(t *testing.T) {
	_, err := NewLoadTester("http://localhost", "").Run(context.Background(), LoadProfile("extreme"))
	require.Error(t, err)
}

func TestRunCustomMixesReadsAndRegistrations(t *testing.T) {
	var reads, registers, unregisters atomic.Int64
	var sawToken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer student-token" {
			sawToken.Store(true)
		}
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/register"):
			registers.Add(1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodDelete:
			unregisters.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			reads.Add(1)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	lt := NewLoadTester(srv.URL+"/", "student-token")
	stats, err := lt.RunCustom(context.Background(), ProfileConfig{
		RequestsPerSecond: 40,
		Duration:          time.Second,
		ReadRatio:         0.5,
		EventID:           7,
	})
	require.NoError(t, err)

	assert.True(t, sawToken.Load())
	assert.Positive(t, stats.Total())
	assert.Equal(t, stats.Total(), reads.Load()+registers.Load()+unregisters.Load())
	assert.InDelta(t, registers.Load(), unregisters.Load(), 1)
	assert.Zero(t, stats.StatusCount(0))

	report := stats.Report()
	assert.Contains(t, report, "Total requests:")
	assert.Contains(t, report, "Status codes:")
}

func TestRunCustomStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewLoadTester(srv.URL, "").RunCustom(ctx, ProfileConfig{RequestsPerSecond: 10, Duration: time.Minute})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStatisticsReport(t *testing.T) {
	stats := newStatistics()
	stats.record("list_events", http.StatusOK, 10*time.Millisecond)
	stats.record("list_events", http.StatusOK, 30*time.Millisecond)
	stats.record("register", http.StatusConflict, 20*time.Millisecond)
	stats.record("register", 0, time.Second)
	stats.finish()

	assert.EqualValues(t, 4, stats.Total())
	assert.EqualValues(t, 1, stats.StatusCount(http.StatusConflict))

	report := stats.Report()
	assert.Contains(t, report, "Successful:      2 (50.0%)")
	assert.Contains(t, report, "transport error")
	assert.Less(t, strings.Index(report, "list_events"), strings.Index(report, "register "))
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.5))

	latencies := []time.Duration{5 * time.Millisecond, time.Millisecond, 3 * time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	assert.Equal(t, 3*time.Millisecond, percentile(latencies, 0.5))
	assert.Equal(t, 5*time.Millisecond, percentile(latencies, 0.99))
	assert.Equal(t, 5*time.Millisecond, latencies[0], "input must not be reordered")
}
