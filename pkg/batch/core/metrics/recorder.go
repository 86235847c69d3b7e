package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// MetricRecorder records metrics about master jobs and their task attempts.
// Implementations exist for Prometheus and OpenTelemetry; the no-op recorder
// is used when metrics are disabled.
type MetricRecorder interface {
	// RecordJobStart records the start of a master job.
	RecordJobStart(ctx context.Context, job *model.MasterJob)

	// RecordJobEnd records the end of a master job, including its final counters.
	RecordJobEnd(ctx context.Context, job *model.MasterJob)

	// RecordTaskStart records that one attempt was dispatched.
	RecordTaskStart(ctx context.Context, masterJobID string)

	// RecordTaskOutcome records the classification and wall time of one attempt.
	RecordTaskOutcome(ctx context.Context, masterJobID string, status model.RecordStatus, duration time.Duration)

	// RecordRequeue records that an input went back onto the queue.
	RecordRequeue(ctx context.Context, masterJobID string, reason model.RecordStatus)

	// RecordDuration records an arbitrary duration with tags.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
