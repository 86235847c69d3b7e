package tracing

import (
	"context"
	"sync"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
)

const module = "tracing"

// TracingJobListener manages a tracing span per master job.
type TracingJobListener struct {
	tracer metrics.Tracer

	mu    sync.Mutex
	spans map[string]jobSpan
}

type jobSpan struct {
	ctx context.Context
	end func()
}

func NewTracingJobListener(tracer metrics.Tracer) *TracingJobListener {
	return &TracingJobListener{
		tracer: tracer,
		spans:  make(map[string]jobSpan),
	}
}

func (l *TracingJobListener) BeforeJob(ctx context.Context, job *model.MasterJob) {
	spanCtx, end := l.tracer.StartJobSpan(ctx, job)
	l.mu.Lock()
	l.spans[job.ID] = jobSpan{ctx: spanCtx, end: end}
	l.mu.Unlock()
}

func (l *TracingJobListener) AfterJob(ctx context.Context, job *model.MasterJob, counters model.Counters) {
	l.mu.Lock()
	span, ok := l.spans[job.ID]
	delete(l.spans, job.ID)
	l.mu.Unlock()
	if !ok {
		return
	}
	l.tracer.RecordEvent(span.ctx, "master_job.finished", map[string]interface{}{
		"master_job.id":     job.ID,
		"master_job.status": string(job.Status),
		"records.completed": counters.Completed,
		"records.attempted": counters.Total,
		"records.failed":    counters.Failed,
	})
	span.end()
}

var _ port.JobListener = (*TracingJobListener)(nil)

// TracingTaskListener annotates the task span, which the job manager opens
// around every attempt, with the attempt's outcome.
type TracingTaskListener struct {
	tracer metrics.Tracer
}

func NewTracingTaskListener(tracer metrics.Tracer) *TracingTaskListener {
	return &TracingTaskListener{tracer: tracer}
}

func (l *TracingTaskListener) BeforeTask(ctx context.Context, masterJobID string, input model.InputRecord) {}

func (l *TracingTaskListener) AfterTask(ctx context.Context, outcome port.TaskOutcome) {
	if outcome.Err != nil {
		l.tracer.RecordError(ctx, module, outcome.Err)
	}
	l.tracer.RecordEvent(ctx, "task.finished", map[string]interface{}{
		"task.attempt":  outcome.Attempt,
		"task.status":   string(outcome.Status),
		"task.requeued": outcome.Requeued,
		"task.items":    len(outcome.Output),
	})
}

var _ port.TaskListener = (*TracingTaskListener)(nil)
