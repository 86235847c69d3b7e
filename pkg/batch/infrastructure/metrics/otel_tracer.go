package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/datagen/pkg/batch/core/metrics"
	logger "github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// InstrumentationName names the tracer and meter of the engine.
const InstrumentationName = "github.com/tigerroll/datagen"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from tp.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(InstrumentationName)}
}

// StartJobSpan starts a span for a master job.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, job *model.MasterJob) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "datagen.master_job", trace.WithAttributes(
		attribute.String("datagen.master_job_id", job.ID),
		attribute.String("datagen.project_id", job.ProjectID),
		attribute.Int("datagen.target_count", job.TargetCount),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("datagen.status", string(job.Status)),
			attribute.Int("datagen.completed", job.CompletedCount),
			attribute.Int("datagen.failed", job.FailedCount),
		)
		span.End()
	}
}

// StartTaskSpan starts a span for one attempt.
func (t *OpenTelemetryTracer) StartTaskSpan(ctx context.Context, masterJobID, inputHash string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "datagen.task", trace.WithAttributes(
		attribute.String("datagen.master_job_id", masterJobID),
		attribute.String("datagen.input_hash", inputHash),
	))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		logger.Debugf("Tracer: error in module %s outside a span: %v", module, err)
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("datagen.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, attribute.String(k, val))
		case int:
			kvs = append(kvs, attribute.Int(k, val))
		case int64:
			kvs = append(kvs, attribute.Int64(k, val))
		case float64:
			kvs = append(kvs, attribute.Float64(k, val))
		case bool:
			kvs = append(kvs, attribute.Bool(k, val))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return kvs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
