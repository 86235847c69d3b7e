package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// DefaultAsyncBufferSize is used when no positive buffer size is given.
const DefaultAsyncBufferSize = 100

// MetricEvent represents a metric event to be recorded asynchronously.
type MetricEvent struct {
	Type        string
	MasterJob   *model.MasterJob
	MasterJobID string
	Status      model.RecordStatus
	Name        string            // For duration metrics
	Duration    time.Duration     // For task outcome and duration metrics
	Tags        map[string]string // For duration metric tags
}

// Metric event type constants
const (
	MetricEventTypeJobStart       = "job_start"
	MetricEventTypeJobEnd         = "job_end"
	MetricEventTypeTaskStart      = "task_start"
	MetricEventTypeTaskOutcome    = "task_outcome"
	MetricEventTypeRequeue        = "requeue"
	MetricEventTypeRecordDuration = "record_duration"
)

// AsyncMetricRecorder asynchronously records metrics by pushing events to a channel
// and processing them in a separate goroutine. Events that do not fit into the
// buffer are dropped with a warning, so recording never blocks an attempt.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder around syncRec.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = DefaultAsyncBufferSize
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			// Drain what is already queued before exiting.
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.processEvent(<-r.eventQueue)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	ctx := context.Background()
	switch event.Type {
	case MetricEventTypeJobStart:
		r.syncRecorder.RecordJobStart(ctx, event.MasterJob)
	case MetricEventTypeJobEnd:
		r.syncRecorder.RecordJobEnd(ctx, event.MasterJob)
	case MetricEventTypeTaskStart:
		r.syncRecorder.RecordTaskStart(ctx, event.MasterJobID)
	case MetricEventTypeTaskOutcome:
		r.syncRecorder.RecordTaskOutcome(ctx, event.MasterJobID, event.Status, event.Duration)
	case MetricEventTypeRequeue:
		r.syncRecorder.RecordRequeue(ctx, event.MasterJobID, event.Status)
	case MetricEventTypeRecordDuration:
		r.syncRecorder.RecordDuration(ctx, event.Name, event.Duration, event.Tags)
	default:
		logger.Warnf("AsyncMetricRecorder: Unknown metric event type: %s", event.Type)
	}
}

// Close stops the worker after it has processed the events already queued.
// It is safe to call more than once. Events sent after Close are dropped.
func (r *AsyncMetricRecorder) Close() {
	r.closeOnce.Do(func() {
		logger.Debugf("AsyncMetricRecorder: Sending shutdown signal...")
		close(r.stopCh)
		r.wg.Wait()
		logger.Debugf("AsyncMetricRecorder: Shutdown complete.")
	})
}

func (r *AsyncMetricRecorder) sendEvent(event MetricEvent, id string) {
	select {
	case <-r.stopCh:
		return
	default:
	}
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: Event queue is full (type: %s, ID: %s). Event discarded.", event.Type, id)
	}
}

// RecordJobStart asynchronously records the start of a master job.
// The job is copied so later mutations do not race with the worker.
func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, job *model.MasterJob) {
	snapshot := *job
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobStart, MasterJob: &snapshot}, job.ID)
}

// RecordJobEnd asynchronously records the end of a master job.
func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, job *model.MasterJob) {
	snapshot := *job
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobEnd, MasterJob: &snapshot}, job.ID)
}

func (r *AsyncMetricRecorder) RecordTaskStart(ctx context.Context, masterJobID string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeTaskStart, MasterJobID: masterJobID}, masterJobID)
}

func (r *AsyncMetricRecorder) RecordTaskOutcome(ctx context.Context, masterJobID string, status model.RecordStatus, duration time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeTaskOutcome, MasterJobID: masterJobID, Status: status, Duration: duration}, masterJobID)
}

func (r *AsyncMetricRecorder) RecordRequeue(ctx context.Context, masterJobID string, reason model.RecordStatus) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRequeue, MasterJobID: masterJobID, Status: reason}, masterJobID)
}

// RecordDuration asynchronously records the execution time of a named operation.
func (r *AsyncMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRecordDuration, Name: name, Duration: duration, Tags: tags}, name)
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)
