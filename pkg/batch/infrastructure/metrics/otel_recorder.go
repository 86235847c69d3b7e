package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/datagen/pkg/batch/core/metrics"
)

// OpenTelemetryRecorder records engine metrics with OpenTelemetry instruments.
type OpenTelemetryRecorder struct {
	jobs          otelmetric.Int64Counter
	jobRecords    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	tasksStarted  otelmetric.Int64Counter
	taskOutcomes  otelmetric.Int64Counter
	taskDuration  otelmetric.Float64Histogram
	requeues      otelmetric.Int64Counter
	operationTime otelmetric.Float64Histogram
}

// NewOpenTelemetryRecorder creates the instruments on a meter of mp.
func NewOpenTelemetryRecorder(mp otelmetric.MeterProvider) (*OpenTelemetryRecorder, error) {
	meter := mp.Meter(InstrumentationName)
	r := &OpenTelemetryRecorder{}
	var err error
	if r.jobs, err = meter.Int64Counter("datagen.master_job.status",
		otelmetric.WithDescription("Master job transitions by status.")); err != nil {
		return nil, err
	}
	if r.jobRecords, err = meter.Int64Counter("datagen.master_job.records",
		otelmetric.WithDescription("Records of finished master jobs by classification.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("datagen.master_job.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Duration of master jobs.")); err != nil {
		return nil, err
	}
	if r.tasksStarted, err = meter.Int64Counter("datagen.task.started",
		otelmetric.WithDescription("Dispatched attempts.")); err != nil {
		return nil, err
	}
	if r.taskOutcomes, err = meter.Int64Counter("datagen.task.outcome",
		otelmetric.WithDescription("Finished attempts by classification.")); err != nil {
		return nil, err
	}
	if r.taskDuration, err = meter.Float64Histogram("datagen.task.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Wall time of attempts.")); err != nil {
		return nil, err
	}
	if r.requeues, err = meter.Int64Counter("datagen.requeue",
		otelmetric.WithDescription("Inputs put back on the queue by reason.")); err != nil {
		return nil, err
	}
	if r.operationTime, err = meter.Float64Histogram("datagen.operation.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Duration of named operations.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OpenTelemetryRecorder) RecordJobStart(ctx context.Context, job *model.MasterJob) {
	r.jobs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("project_id", job.ProjectID),
		attribute.String("status", string(model.JobStatusRunning)),
	))
}

func (r *OpenTelemetryRecorder) RecordJobEnd(ctx context.Context, job *model.MasterJob) {
	project := attribute.String("project_id", job.ProjectID)
	status := attribute.String("status", string(job.Status))
	r.jobs.Add(ctx, 1, otelmetric.WithAttributes(project, status))
	for st, n := range map[model.RecordStatus]int{
		model.RecordStatusCompleted: job.CompletedCount,
		model.RecordStatusFiltered:  job.FilteredCount,
		model.RecordStatusDuplicate: job.DuplicateCount,
		model.RecordStatusFailed:    job.FailedCount,
	} {
		r.jobRecords.Add(ctx, int64(n), otelmetric.WithAttributes(project, attribute.String("status", string(st))))
	}
	if job.StartTime != nil && job.EndTime != nil {
		r.jobDuration.Record(ctx, job.EndTime.Sub(*job.StartTime).Seconds(), otelmetric.WithAttributes(project, status))
	}
}

func (r *OpenTelemetryRecorder) RecordTaskStart(ctx context.Context, masterJobID string) {
	r.tasksStarted.Add(ctx, 1)
}

func (r *OpenTelemetryRecorder) RecordTaskOutcome(ctx context.Context, masterJobID string, status model.RecordStatus, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("status", string(status)))
	r.taskOutcomes.Add(ctx, 1, attrs)
	r.taskDuration.Record(ctx, duration.Seconds(), attrs)
}

func (r *OpenTelemetryRecorder) RecordRequeue(ctx context.Context, masterJobID string, reason model.RecordStatus) {
	r.requeues.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", string(reason))))
}

func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := []attribute.KeyValue{attribute.String("name", name)}
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationTime.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
