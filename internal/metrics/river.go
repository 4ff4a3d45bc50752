package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

var (
	JobsEnqueued = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "enqueued_total",
			Help:      "Background jobs inserted, by kind",
		},
		[]string{"kind"},
	)

	JobsRunning = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Background jobs currently executing, by kind",
		},
		[]string{"kind"},
	)

	JobDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Background job attempt duration in seconds",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
		},
		[]string{"kind"},
	)

	// outcome: succeeded, retrying, exhausted
	JobAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "attempts_total",
			Help:      "Finished background job attempts, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// JobOutcome classifies a finished attempt. A failure on the last allowed
// attempt is exhausted; earlier failures will be retried.
func JobOutcome(job *rivertype.JobRow, err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case job.Attempt >= job.MaxAttempts:
		return "exhausted"
	default:
		return "retrying"
	}
}

// JobHook feeds the jobs_* metrics from River's insert and work hooks.
type JobHook struct {
	river.HookDefaults
	now func() time.Time
}

func NewJobHook() *JobHook {
	return &JobHook{now: time.Now}
}

func (h *JobHook) InsertBegin(_ context.Context, params *rivertype.JobInsertParams) error {
	JobsEnqueued.WithLabelValues(params.Kind).Inc()
	return nil
}

func (h *JobHook) WorkBegin(_ context.Context, job *rivertype.JobRow) error {
	JobsRunning.WithLabelValues(job.Kind).Inc()
	return nil
}

// WorkEnd measures from the attempt timestamp River stamps on the row when
// it locks the job.
func (h *JobHook) WorkEnd(_ context.Context, job *rivertype.JobRow, err error) error {
	JobsRunning.WithLabelValues(job.Kind).Dec()
	if job.AttemptedAt != nil {
		JobDuration.WithLabelValues(job.Kind).Observe(h.now().Sub(*job.AttemptedAt).Seconds())
	}
	JobAttempts.WithLabelValues(job.Kind, JobOutcome(job, err)).Inc()
	return nil
}
