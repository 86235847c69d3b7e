package job

import (
	"context"
	"time"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
	"github.com/tigerroll/datagen/pkg/batch/support/util/serialization"
)

// attempt runs one input through the pipeline:
// work function, hooks, persistence, counters, requeue.
func (r *run) attempt(ctx context.Context, item queued) {
	defer r.wg.Done()
	defer r.sem.Release(1)

	cfg := r.m.cfg
	item.attempt++

	spanCtx, endSpan := cfg.Tracer.StartTaskSpan(ctx, r.masterJobID, item.hash)
	defer endSpan()

	for _, l := range cfg.TaskListeners {
		l.BeforeTask(spanCtx, r.masterJobID, item.input)
	}

	start := time.Now()
	output, taskErr := r.m.runner.Run(spanCtx, r.m.work, item.input, cfg.TaskTimeout)
	status := r.classify(spanCtx, output, taskErr)
	duration := time.Since(start)

	if taskErr != nil {
		cfg.Tracer.RecordError(spanCtx, module, taskErr)
		logger.Warnf("Master job %s: attempt %d of input %v failed: %v",
			r.masterJobID, item.attempt, serialization.MaskParameters(item.input, cfg.MaskedKeys), taskErr)
	} else {
		logger.Debugf("Master job %s: attempt %d of input %s classified %s (%d items, %s).",
			r.masterJobID, item.attempt, shortHash(item.hash), status, len(output), duration)
	}

	outcome := port.TaskOutcome{
		MasterJobID: r.masterJobID,
		Input:       item.input,
		InputHash:   item.hash,
		Attempt:     item.attempt,
		Status:      status,
		Output:      output,
		Err:         taskErr,
		Duration:    duration,
	}

	if r.capture != nil {
		r.capture.output, r.capture.status, r.capture.err = output, status, taskErr
	}

	if r.persisting() {
		// Cancellation of the run must not lose the record of an attempt that already finished.
		execID, err := r.persist(context.WithoutCancel(ctx), item, start, status, output, taskErr)
		outcome.ExecutionJobID = execID
		if err != nil {
			r.latchStorageError(err)
		}
	}

	r.mu.Lock()
	r.inFlight--
	r.counters.Total++
	switch status {
	case model.RecordStatusCompleted:
		r.counters.Completed++
		r.outputs = append(r.outputs, output)
	case model.RecordStatusDuplicate:
		r.counters.Duplicate++
	case model.RecordStatusFiltered:
		r.counters.Filtered++
	default:
		r.counters.Failed++
	}
	if status != model.RecordStatusCompleted && r.mode != ModeDryRun {
		if cfg.RetryPolicy.ShouldRequeue(item.attempt, status, taskErr) {
			var delay time.Duration
			if status == model.RecordStatusFailed {
				delay = cfg.RetryPolicy.BackoffInterval(item.attempt)
			}
			r.requeueLocked(item, delay)
			outcome.Requeued = true
		} else {
			r.exhausted++
			logger.Debugf("Master job %s: input %s dropped after %d attempts.", r.masterJobID, shortHash(item.hash), item.attempt)
		}
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify()
	if p := r.progress; p != nil {
		p.Update(snapshot)
	}
	for _, l := range cfg.TaskListeners {
		l.AfterTask(spanCtx, outcome)
	}
}

// classify turns the task result into a record status. A task error makes the
// record failed after running every error hook; otherwise every completion
// hook runs and the verdict with the highest precedence wins.
func (r *run) classify(ctx context.Context, output []interface{}, taskErr error) model.RecordStatus {
	cfg := r.m.cfg
	if taskErr != nil {
		for _, h := range cfg.ErrorHooks {
			h.OnRecordError(ctx, taskErr, cfg.State)
		}
		return model.RecordStatusFailed
	}
	verdict := model.RecordStatusCompleted
	for _, h := range cfg.CompletionHooks {
		if s := h.OnRecordComplete(ctx, output, cfg.State); s.Precedence() > verdict.Precedence() {
			verdict = s
		}
	}
	return verdict
}

// persist writes one terminal attempt: execution job start, the payload and
// metadata of every output item, execution job end. A failed attempt gets a
// single record carrying the error and no payload.
func (r *run) persist(ctx context.Context, item queued, start time.Time, status model.RecordStatus, output []interface{}, taskErr error) (string, error) {
	store := r.m.cfg.Storage

	exec := model.NewExecutionJob(r.masterJobID, item.input, item.hash)
	exec.StartTime = start
	if err := store.LogExecutionJobStart(ctx, exec); err != nil {
		return exec.ID, wrapStorage("failed to log execution job start", err)
	}

	now := time.Now()
	if status == model.RecordStatusFailed {
		rec := &model.Record{
			ID:           model.NewID(),
			JobID:        exec.ID,
			MasterJobID:  r.masterJobID,
			Status:       status,
			CreateTime:   start,
			EndTime:      now,
			ErrorMessage: errorMessage(taskErr),
		}
		if err := store.LogRecordMetadata(ctx, rec); err != nil {
			return exec.ID, wrapStorage("failed to log record metadata", err)
		}
	} else {
		for i, out := range output {
			payload, err := serialization.MarshalPayload(out)
			if err != nil {
				return exec.ID, wrapStorage("failed to serialize record payload", err)
			}
			rec := &model.Record{
				ID:          model.NewID(),
				JobID:       exec.ID,
				MasterJobID: r.masterJobID,
				Status:      status,
				Index:       i,
				CreateTime:  start,
				EndTime:     now,
			}
			ref, err := store.SaveRecordData(ctx, rec.ID, r.masterJobID, exec.ID, payload)
			if err != nil {
				return exec.ID, wrapStorage("failed to save record data", err)
			}
			rec.OutputRef = ref
			if err := store.LogRecordMetadata(ctx, rec); err != nil {
				return exec.ID, wrapStorage("failed to log record metadata", err)
			}
		}
	}

	exec.Finish(status, len(output), taskErr)
	if err := store.LogExecutionJobEnd(ctx, exec); err != nil {
		return exec.ID, wrapStorage("failed to log execution job end", err)
	}
	return exec.ID, nil
}

func wrapStorage(message string, err error) error {
	if exception.IsStorageError(err) {
		return err
	}
	return exception.NewStorageError(module, message, err)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return exception.ErrorTypeName(err) + ": " + err.Error()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
