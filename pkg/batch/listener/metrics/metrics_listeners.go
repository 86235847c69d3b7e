package metrics

import (
	"context"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
)

// --- Job Listener ---

type MetricsJobListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsJobListener(recorder metrics.MetricRecorder) *MetricsJobListener {
	return &MetricsJobListener{recorder: recorder}
}

func (l *MetricsJobListener) BeforeJob(ctx context.Context, job *model.MasterJob) {
	l.recorder.RecordJobStart(ctx, job)
}

func (l *MetricsJobListener) AfterJob(ctx context.Context, job *model.MasterJob, counters model.Counters) {
	l.recorder.RecordJobEnd(ctx, job)
}

var _ port.JobListener = (*MetricsJobListener)(nil)

// --- Task Listener ---

type MetricsTaskListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsTaskListener(recorder metrics.MetricRecorder) *MetricsTaskListener {
	return &MetricsTaskListener{recorder: recorder}
}

func (l *MetricsTaskListener) BeforeTask(ctx context.Context, masterJobID string, input model.InputRecord) {
	l.recorder.RecordTaskStart(ctx, masterJobID)
}

func (l *MetricsTaskListener) AfterTask(ctx context.Context, outcome port.TaskOutcome) {
	l.recorder.RecordTaskOutcome(ctx, outcome.MasterJobID, outcome.Status, outcome.Duration)
	if outcome.Requeued {
		l.recorder.RecordRequeue(ctx, outcome.MasterJobID, outcome.Status)
	}
}

var _ port.TaskListener = (*MetricsTaskListener)(nil)
