package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/unisphere-campus/server/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"
)

// HealthSource is the storage surface probed by /health.
type HealthSource interface {
	Ping(ctx context.Context) error
	MigrationVersion(ctx context.Context) (uint, bool, error)
	PoolStats() metrics.PoolStats
	Driver() string
}

// JobQueue reports how many jobs are waiting or running.
type JobQueue interface {
	ActiveJobs(ctx context.Context) (int64, error)
}

type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Driver    string                 `json:"storage_driver"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

type HealthChecker struct {
	store     HealthSource
	jobs      JobQueue
	version   string
	gitCommit string
}

// NewHealthChecker builds the /health handler. jobs is nil when the job
// queue is not running, which is reported as a warning.
func NewHealthChecker(store HealthSource, jobs JobQueue, version, gitCommit string) *HealthChecker {
	return &HealthChecker{store: store, jobs: jobs, version: version, gitCommit: gitCommit}
}

// Health runs the database, migration and job queue checks concurrently.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Err() != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{}
		var mu sync.Mutex
		record := func(name string, fn func(context.Context) CheckResult) func() error {
			return func() error {
				result := fn(ctx)
				mu.Lock()
				checks[name] = result
				mu.Unlock()
				return nil
			}
		}

		var g errgroup.Group
		g.Go(record("database", h.checkDatabase))
		g.Go(record("migrations", h.checkMigrations))
		g.Go(record("job_queue", h.checkJobQueue))
		_ = g.Wait()

		overall, statusCode := "healthy", http.StatusOK
		for name, check := range checks {
			metrics.RecordHealthCheck(name, check.Status, check.LatencyMs)
			switch check.Status {
			case checkFail:
				overall, statusCode = "unhealthy", http.StatusServiceUnavailable
			case checkWarn:
				if overall == "healthy" {
					overall = "degraded"
				}
			}
		}
		metrics.RecordHealth(overall)

		driver := ""
		if h.store != nil {
			driver = h.store.Driver()
		}
		writeJSON(w, statusCode, HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Driver:    driver,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.store == nil {
		return CheckResult{Status: checkFail, Message: "Storage not initialized"}
	}
	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.store.Ping(dbCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		if dbCtx.Err() == context.DeadlineExceeded {
			message = "Database ping timed out after 2 seconds"
		}
		return CheckResult{
			Status:    checkFail,
			Message:   message,
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}

	stats := h.store.PoolStats()
	return CheckResult{
		Status:    checkPass,
		Message:   "Database connection successful",
		LatencyMs: latency,
		Details: map[string]any{
			"max_connections":    stats.MaxOpen,
			"open_connections":   stats.Open,
			"in_use_connections": stats.InUse,
			"idle_connections":   stats.Idle,
		},
	}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.store == nil {
		return CheckResult{Status: checkFail, Message: "Storage not initialized"}
	}
	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	version, dirty, err := h.store.MigrationVersion(migCtx)
	latency := time.Since(start).Milliseconds()
	switch {
	case err != nil:
		return CheckResult{
			Status:    checkFail,
			Message:   "Failed to read migration version",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error(), "remediation": "Run: server migrate up"},
		}
	case dirty:
		return CheckResult{
			Status:    checkFail,
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details:   map[string]any{"version": version, "dirty": true},
		}
	case version == 0:
		return CheckResult{
			Status:    checkFail,
			Message:   "No migrations applied",
			LatencyMs: latency,
			Details:   map[string]any{"remediation": "Run: server migrate up"},
		}
	}
	return CheckResult{
		Status:    checkPass,
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version, "dirty": false},
	}
}

func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	if h.jobs == nil {
		return CheckResult{Status: checkWarn, Message: "Job queue not running"}
	}
	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	active, err := h.jobs.ActiveJobs(jobCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    checkFail,
			Message:   "Failed to query job queue",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
	return CheckResult{
		Status:    checkPass,
		Message:   "Job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"active_jobs": active},
	}
}

// Healthz is the liveness probe.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

// Readyz reports ready once the database answers a ping.
func Readyz(store HealthSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if store == nil || store.Ping(ctx) != nil {
			respondHealth(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		respondHealth(w, http.StatusOK, "ready")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
