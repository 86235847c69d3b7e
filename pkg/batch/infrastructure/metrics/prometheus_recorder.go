package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/datagen/pkg/batch/core/metrics"
	logger "github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Master job metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec
	jobRecords         *prometheus.CounterVec

	// Task metrics
	taskStarted         prometheus.Counter
	taskOutcomeCounter  *prometheus.CounterVec
	taskDurationSeconds *prometheus.HistogramVec
	requeueCounter      *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datagen_master_job_duration_seconds",
			Help:    "Duration of master jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"project_id", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_master_job_status_total",
			Help: "Total number of master job transitions by status.",
		}, []string{"project_id", "status"}),
		jobRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_master_job_records_total",
			Help: "Records of finished master jobs by classification.",
		}, []string{"project_id", "status"}),
		taskStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "datagen_task_started_total",
			Help: "Total number of dispatched attempts.",
		}),
		taskOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_task_outcome_total",
			Help: "Total number of finished attempts by classification.",
		}, []string{"status"}),
		taskDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datagen_task_duration_seconds",
			Help:    "Wall time of attempts by classification.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		requeueCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datagen_requeue_total",
			Help: "Total number of inputs put back on the queue by reason.",
		}, []string{"reason"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "datagen_operation_duration_seconds",
			Help:    "Duration of named operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.jobRecords,
		r.taskStarted,
		r.taskOutcomeCounter,
		r.taskDurationSeconds,
		r.requeueCounter,
		r.operationDurationSeconds,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordJobStart records the start of a master job.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, job *model.MasterJob) {
	r.jobStatusCounter.WithLabelValues(job.ProjectID, string(model.JobStatusRunning)).Inc()
	logger.Debugf("Metrics: master job '%s' started.", job.ID)
}

// RecordJobEnd records the end of a master job and its classification counts.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, job *model.MasterJob) {
	status := string(job.Status)
	r.jobStatusCounter.WithLabelValues(job.ProjectID, status).Inc()
	r.jobRecords.WithLabelValues(job.ProjectID, string(model.RecordStatusCompleted)).Add(float64(job.CompletedCount))
	r.jobRecords.WithLabelValues(job.ProjectID, string(model.RecordStatusFiltered)).Add(float64(job.FilteredCount))
	r.jobRecords.WithLabelValues(job.ProjectID, string(model.RecordStatusDuplicate)).Add(float64(job.DuplicateCount))
	r.jobRecords.WithLabelValues(job.ProjectID, string(model.RecordStatusFailed)).Add(float64(job.FailedCount))

	if job.StartTime == nil || job.EndTime == nil {
		return
	}
	duration := job.EndTime.Sub(*job.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(job.ProjectID, status).Observe(duration)
	logger.Debugf("Metrics: master job '%s' ended. Duration: %.3fs", job.ID, duration)
}

// RecordTaskStart records a dispatched attempt.
func (r *PrometheusRecorder) RecordTaskStart(ctx context.Context, masterJobID string) {
	r.taskStarted.Inc()
}

// RecordTaskOutcome records a finished attempt.
func (r *PrometheusRecorder) RecordTaskOutcome(ctx context.Context, masterJobID string, status model.RecordStatus, duration time.Duration) {
	r.taskOutcomeCounter.WithLabelValues(string(status)).Inc()
	r.taskDurationSeconds.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// RecordRequeue records an input put back on the queue.
func (r *PrometheusRecorder) RecordRequeue(ctx context.Context, masterJobID string, reason model.RecordStatus) {
	r.requeueCounter.WithLabelValues(string(reason)).Inc()
}

// RecordDuration records the duration of a named operation. Tags are not
// used as labels to keep the series count bounded.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
