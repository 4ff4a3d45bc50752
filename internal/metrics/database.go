package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBConnections: state is open, in_use, idle or max.
	DBConnections = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections",
			Help:      "Database connection pool usage by state",
		},
		[]string{"state"},
	)

	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of service-level database operations in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// DBErrors: error_type is canceled, timeout or query_error.
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Failed database operations by type",
		},
		[]string{"operation", "error_type"},
	)
)

// PoolStats is a backend-neutral snapshot of connection pool usage.
type PoolStats struct {
	Open    int
	InUse   int
	Idle    int
	MaxOpen int
}

// PoolStatter is implemented by each storage backend.
type PoolStatter interface {
	PoolStats() PoolStats
}

// PoolWatcher copies pool statistics into DBConnections.
type PoolWatcher struct {
	source PoolStatter
}

func NewPoolWatcher(source PoolStatter) *PoolWatcher {
	return &PoolWatcher{source: source}
}

// Run publishes once immediately and then every interval until ctx ends.
func (w *PoolWatcher) Run(ctx context.Context, interval time.Duration) {
	w.publish()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.publish()
		}
	}
}

func (w *PoolWatcher) publish() {
	if w.source == nil {
		return
	}
	stats := w.source.PoolStats()
	DBConnections.WithLabelValues("open").Set(float64(stats.Open))
	DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	DBConnections.WithLabelValues("max").Set(float64(stats.MaxOpen))
}

// RecordQuery observes how long operation took since start and counts a
// failure when err is non-nil.
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}

	errorType := "query_error"
	if errors.Is(err, context.Canceled) {
		errorType = "canceled"
	} else if errors.Is(err, context.DeadlineExceeded) {
		errorType = "timeout"
	}
	DBErrors.WithLabelValues(operation, errorType).Inc()
}
