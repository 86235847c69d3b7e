package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is a MetricRecorder that does nothing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, job *model.MasterJob) {}
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, job *model.MasterJob)   {}
func (r *NoOpMetricRecorder) RecordTaskStart(ctx context.Context, masterJobID string)  {}
func (r *NoOpMetricRecorder) RecordTaskOutcome(ctx context.Context, masterJobID string, status model.RecordStatus, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordRequeue(ctx context.Context, masterJobID string, reason model.RecordStatus) {
}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartJobSpan(ctx context.Context, job *model.MasterJob) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartTaskSpan(ctx context.Context, masterJobID, inputHash string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
