// Package metrics defines the Prometheus series served on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "unisphere"

var Registry = prometheus.NewRegistry()

var (
	BuildInfo = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Constant 1, labelled with the running build and storage driver",
		},
		[]string{"version", "commit", "build_date", "storage_driver"},
	)

	// HealthStatus: 2 healthy, 1 degraded, 0 unhealthy.
	HealthStatus = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_status",
			Help:      "Result of the last /health evaluation (2 healthy, 1 degraded, 0 unhealthy)",
		},
	)

	// HealthCheckStatus: 2 pass, 1 warn, 0 fail.
	HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_check_status",
			Help:      "Result of each /health check (2 pass, 1 warn, 0 fail)",
		},
		[]string{"check"},
	)

	HealthCheckLatency = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_check_latency_seconds",
			Help:      "Latency of each /health check in seconds",
		},
		[]string{"check"},
	)
)

var healthScores = map[string]float64{
	"healthy": 2, "degraded": 1,
	"pass": 2, "warn": 1,
}

// RecordHealth publishes the overall /health verdict. Unknown values count
// as unhealthy.
func RecordHealth(status string) {
	HealthStatus.Set(healthScores[status])
}

func RecordHealthCheck(check, status string, latencyMs int64) {
	HealthCheckStatus.WithLabelValues(check).Set(healthScores[status])
	HealthCheckLatency.WithLabelValues(check).Set(float64(latencyMs) / 1000)
}

var registerRuntime sync.Once

// Init adds the Go runtime and process collectors on first use and
// replaces the build_info series.
func Init(version, commit, buildDate, storageDriver string) {
	registerRuntime.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})

	BuildInfo.Reset()
	BuildInfo.WithLabelValues(version, commit, buildDate, storageDriver).Set(1)
}
