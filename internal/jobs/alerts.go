package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/unisphere-campus/server/internal/metrics"
)

// AlertFunc receives jobs that will not be retried: exhausted attempts and
// panics.
type AlertFunc func(ctx context.Context, job *rivertype.JobRow, err error)

// FailureHandler is River's ErrorHandler. Failures that River will retry
// are logged at warn; the last failed attempt and any panic are logged at
// error and passed to Alert.
type FailureHandler struct {
	logger *slog.Logger
	alert  AlertFunc
}

func NewFailureHandler(logger *slog.Logger, alert AlertFunc) *FailureHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FailureHandler{logger: logger, alert: alert}
}

func (h *FailureHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	attrs := []any{"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "max_attempts", job.MaxAttempts, "error", err}
	if metrics.JobOutcome(job, err) == "retrying" {
		h.logger.WarnContext(ctx, "job attempt failed, will retry", attrs...)
		return nil
	}
	h.logger.ErrorContext(ctx, "job failed permanently", attrs...)
	h.raise(ctx, job, err)
	return nil
}

// HandlePanic treats a panic as permanent for alerting; River still applies
// the retry policy to the job itself.
func (h *FailureHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	err := fmt.Errorf("panic: %v", panicVal)
	h.logger.ErrorContext(ctx, "job panicked", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", err, "trace", trace)
	h.raise(ctx, job, err)
	return nil
}

func (h *FailureHandler) raise(ctx context.Context, job *rivertype.JobRow, err error) {
	if h.alert != nil {
		h.alert(ctx, job, err)
	}
}
