package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	coremetrics "github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/infrastructure/metrics"
)

func finishedJob() *model.MasterJob {
	job := model.NewMasterJob("proj", 3)
	job.MarkAsStarted()
	job.MarkAsFinished(model.JobStatusCompletedWithErrors, model.Counters{Completed: 2, Failed: 1}, nil)
	return job
}

func TestPrometheusRecorder(t *testing.T) {
	ctx := context.Background()
	r := metrics.NewPrometheusRecorder()

	job := finishedJob()
	r.RecordJobStart(ctx, job)
	r.RecordTaskStart(ctx, job.ID)
	r.RecordTaskOutcome(ctx, job.ID, model.RecordStatusCompleted, 10*time.Millisecond)
	r.RecordTaskOutcome(ctx, job.ID, model.RecordStatusCompleted, 20*time.Millisecond)
	r.RecordTaskOutcome(ctx, job.ID, model.RecordStatusFailed, time.Millisecond)
	r.RecordRequeue(ctx, job.ID, model.RecordStatusFailed)
	r.RecordJobEnd(ctx, job)
	r.RecordDuration(ctx, "export", time.Second, map[string]string{"ignored": "x"})

	expected := `
# HELP datagen_task_outcome_total Total number of finished attempts by classification.
# TYPE datagen_task_outcome_total counter
datagen_task_outcome_total{status="COMPLETED"} 2
datagen_task_outcome_total{status="FAILED"} 1
# HELP datagen_requeue_total Total number of inputs put back on the queue by reason.
# TYPE datagen_requeue_total counter
datagen_requeue_total{reason="FAILED"} 1
# HELP datagen_master_job_status_total Total number of master job transitions by status.
# TYPE datagen_master_job_status_total counter
datagen_master_job_status_total{project_id="proj",status="COMPLETED_WITH_ERRORS"} 1
datagen_master_job_status_total{project_id="proj",status="RUNNING"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.GetRegistry(), strings.NewReader(expected),
		"datagen_task_outcome_total", "datagen_requeue_total", "datagen_master_job_status_total"))

	n, err := testutil.GatherAndCount(r.GetRegistry(), "datagen_master_job_duration_seconds", "datagen_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "datagen_task_started_total 1")
}

func TestOpenTelemetryTracer(t *testing.T) {
	ctx := context.Background()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := metrics.NewOpenTelemetryTracer(tp)

	job := model.NewMasterJob("proj", 1)
	jobCtx, endJob := tracer.StartJobSpan(ctx, job)
	taskCtx, endTask := tracer.StartTaskSpan(jobCtx, job.ID, "hash-1")
	tracer.RecordEvent(taskCtx, "requeued", map[string]interface{}{"attempt": 2, "reason": "FAILED", "late": true})
	tracer.RecordError(taskCtx, "task", errors.New("boom"))
	endTask()
	job.Status = model.JobStatusCompleted
	endJob()

	tracer.RecordError(ctx, "job", errors.New("outside any span"))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	task, master := spans[0], spans[1]
	assert.Equal(t, "datagen.task", task.Name())
	assert.Equal(t, "datagen.master_job", master.Name())
	assert.Equal(t, master.SpanContext().SpanID(), task.Parent().SpanID())
	assert.Equal(t, codes.Error, task.Status().Code)

	var names []string
	for _, ev := range task.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "requeued")
	assert.Contains(t, names, "exception")
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestOpenTelemetryRecorder(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := metrics.NewOpenTelemetryRecorder(mp)
	require.NoError(t, err)

	job := finishedJob()
	r.RecordJobStart(ctx, job)
	r.RecordTaskStart(ctx, job.ID)
	r.RecordTaskStart(ctx, job.ID)
	r.RecordTaskOutcome(ctx, job.ID, model.RecordStatusCompleted, time.Millisecond)
	r.RecordRequeue(ctx, job.ID, model.RecordStatusFailed)
	r.RecordJobEnd(ctx, job)
	r.RecordDuration(ctx, "export", time.Second, map[string]string{"format": "parquet"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(2), sumOf(t, rm, "datagen.task.started"))
	assert.Equal(t, int64(1), sumOf(t, rm, "datagen.task.outcome"))
	assert.Equal(t, int64(1), sumOf(t, rm, "datagen.requeue"))
	assert.Equal(t, int64(2), sumOf(t, rm, "datagen.master_job.status"))
	assert.Equal(t, int64(3), sumOf(t, rm, "datagen.master_job.records"))
}

func TestBackendSelection(t *testing.T) {
	cfg := config.NewConfig()
	none, err := metrics.NewOTelProviders(context.Background(), cfg.Datagen.Observability)
	require.NoError(t, err)
	assert.Nil(t, none.TracerProvider)
	assert.Nil(t, none.MeterProvider)
	assert.NoError(t, none.Shutdown(context.Background()))

	assert.IsType(t, &coremetrics.NoOpTracer{}, metrics.NewTracerFromConfig(cfg, none))

	cfg.Datagen.Observability.Tracing = "otel"
	cfg.Datagen.Observability.OTLPProtocol = "http"
	cfg.Datagen.Observability.OTLPEndpoint = "localhost:4318"
	cfg.Datagen.Observability.OTLPInsecure = true
	providers, err := metrics.NewOTelProviders(context.Background(), cfg.Datagen.Observability)
	require.NoError(t, err)
	require.NotNil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.IsType(t, &metrics.OpenTelemetryTracer{}, metrics.NewTracerFromConfig(cfg, providers))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = providers.Shutdown(ctx)
}
