// Package factory is the entry point of the engine. A DataFactory expands the
// caller's input into a queue of records, validates it against the work
// function and drives master jobs through the job manager.
package factory

import (
	"context"
	"errors"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/core/state"
	"github.com/tigerroll/datagen/pkg/batch/engine/job"
	"github.com/tigerroll/datagen/pkg/batch/engine/retry"
	listenermetrics "github.com/tigerroll/datagen/pkg/batch/listener/metrics"
	"github.com/tigerroll/datagen/pkg/batch/listener/tracing"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// DataFactory runs a work function over expanded input records until a target
// number of records has completed. It is safe for concurrent use; every call
// of Run, ReRun or DryRun has its own scheduler, while the shared state is
// kept across calls.
type DataFactory struct {
	work  port.WorkFunc
	opts  options
	state *state.SharedState
}

// New creates a DataFactory for work.
func New(work port.WorkFunc, opts ...Option) (*DataFactory, error) {
	if work == nil {
		return nil, exception.NewConfigurationError(module, "work function must not be nil")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.errs) > 0 {
		return nil, exception.NewBatchError(module, "invalid option", errors.Join(append([]error{exception.ErrConfiguration}, o.errs...)...), false)
	}
	if o.maxConcurrency <= 0 {
		return nil, exception.NewConfigurationError(module, "max concurrency must be positive, got %d", o.maxConcurrency)
	}
	if o.targetCount < 0 {
		return nil, exception.NewConfigurationError(module, "target count must not be negative, got %d", o.targetCount)
	}
	if o.taskTimeout < 0 {
		return nil, exception.NewConfigurationError(module, "task timeout must not be negative, got %s", o.taskTimeout)
	}
	if o.retryPolicy == nil {
		o.retryPolicy = retry.NewPolicy(retry.Options{MaxAttempts: DefaultMaxAttemptsPerInput})
	}
	if o.projectID == "" {
		o.projectID = model.NewID()
	}
	if o.recorder != nil {
		o.jobListeners = append(o.jobListeners, listenermetrics.NewMetricsJobListener(o.recorder))
		o.taskListeners = append(o.taskListeners, listenermetrics.NewMetricsTaskListener(o.recorder))
	}
	if o.tracer != nil {
		o.jobListeners = append(o.jobListeners, tracing.NewTracingJobListener(o.tracer))
		o.taskListeners = append(o.taskListeners, tracing.NewTracingTaskListener(o.tracer))
	} else {
		o.tracer = metrics.NewNoOpTracer()
	}

	return &DataFactory{
		work:  work,
		opts:  o,
		state: state.New(o.initialState),
	}, nil
}

// State returns the state shared by all hooks of this factory.
func (f *DataFactory) State() *state.SharedState {
	return f.state
}

// ProjectID returns the project the factory's master jobs belong to.
func (f *DataFactory) ProjectID() string {
	return f.opts.projectID
}

func (f *DataFactory) managerConfig(target int) job.Config {
	return job.Config{
		MaxConcurrency:  f.opts.maxConcurrency,
		TargetCount:     target,
		TaskTimeout:     f.opts.taskTimeout,
		PollInterval:    f.opts.pollInterval,
		CompletionHooks: f.opts.completionHooks,
		ErrorHooks:      f.opts.errorHooks,
		State:           f.state,
		Storage:         f.opts.storage,
		RetryPolicy:     f.opts.retryPolicy,
		Tracer:          f.opts.tracer,
		TaskListeners:   f.opts.taskListeners,
		Progress:        f.opts.progress,
		MaskedKeys:      f.opts.maskedKeys,
	}
}

func (f *DataFactory) prepare(data []map[string]interface{}, kwargs map[string]interface{}) ([]model.InputRecord, error) {
	records, err := ExpandInputs(data, kwargs)
	if err != nil {
		return nil, err
	}
	if err := ValidateParameters(records, f.work.Parameters()); err != nil {
		return nil, err
	}
	return records, nil
}

// Run starts a new master job over the records expanded from data and kwargs
// and returns the outputs of its completed records, flattened in completion order.
// When the target count exceeds the number of records, the records are cycled
// up to the target and the persisted request config carries the repeats.
//
// It fails with exception.ErrNoRecordsGenerated when no record completed. When
// ctx is cancelled or the storage fails, the outputs completed so far are
// returned together with the error.
func (f *DataFactory) Run(ctx context.Context, data []map[string]interface{}, kwargs map[string]interface{}) ([]interface{}, error) {
	records, err := f.prepare(data, kwargs)
	if err != nil {
		return nil, err
	}
	target := f.opts.targetCount
	if target == 0 {
		target = len(records)
	}
	records = RepeatToTarget(records, target)
	mgr, err := job.NewManager(f.work, f.managerConfig(target))
	if err != nil {
		return nil, err
	}

	master := model.NewMasterJob(f.opts.projectID, target)
	if err := f.startMasterJob(ctx, master, records, target); err != nil {
		return nil, err
	}
	res, runErr := mgr.Run(ctx, master.ID, records)
	return f.finish(ctx, master, res, runErr)
}

func (f *DataFactory) startMasterJob(ctx context.Context, master *model.MasterJob, records []model.InputRecord, target int) error {
	master.MarkAsStarted()
	if s := f.opts.storage; s != nil {
		rc := &model.RequestConfig{
			ProjectID:           f.opts.projectID,
			Inputs:              records,
			TargetCount:         target,
			MaxConcurrency:      f.opts.maxConcurrency,
			TaskTimeout:         f.opts.taskTimeout,
			MaxAttemptsPerInput: f.opts.retryPolicy.MaxAttempts(),
		}
		ref, err := s.SaveRequestConfig(ctx, master.ID, rc)
		if err != nil {
			return storageError("failed to save request config", err)
		}
		master.RequestConfigRef = ref
		if err := s.LogMasterJobStart(ctx, master); err != nil {
			return storageError("failed to log master job start", err)
		}
	}
	logger.Infof("Master job %s started: project=%s, inputs=%d, target=%d, concurrency=%d.",
		master.ID, master.ProjectID, len(records), target, f.opts.maxConcurrency)
	for _, l := range f.opts.jobListeners {
		l.BeforeJob(ctx, master)
	}
	return nil
}

// ReRun resumes the master job masterJobID from storage. Records that already
// completed are replayed from their stored payloads; only the shortfall is run.
// Running ReRun on a finished job replays it without any work or writes.
func (f *DataFactory) ReRun(ctx context.Context, masterJobID string) ([]interface{}, error) {
	s := f.opts.storage
	if s == nil {
		return nil, exception.NewConfigurationError(module, "re-run requires a storage backend")
	}
	master, err := s.GetMasterJob(ctx, masterJobID)
	if err != nil {
		return nil, storageError("failed to load master job", err)
	}
	rc, err := s.GetRequestConfig(ctx, master.RequestConfigRef)
	if err != nil {
		return nil, storageError("failed to load request config", err)
	}
	if err := ValidateParameters(rc.Inputs, f.work.Parameters()); err != nil {
		return nil, err
	}
	target := f.opts.targetCount
	if target == 0 {
		target = rc.TargetCount
	}
	if target == 0 {
		target = len(rc.Inputs)
	}
	mgr, err := job.NewManager(f.work, f.managerConfig(target))
	if err != nil {
		return nil, err
	}

	master.TargetCount = target
	master.EndTime = nil
	master.ErrorMessage = ""
	master.MarkAsStarted()
	if err := s.UpdateMasterJobStatus(ctx, master.ID, model.JobStatusRunning); err != nil {
		return nil, storageError("failed to update master job status", err)
	}
	logger.Infof("Master job %s re-run started: inputs=%d, target=%d.", master.ID, len(rc.Inputs), target)
	for _, l := range f.opts.jobListeners {
		l.BeforeJob(ctx, master)
	}

	res, runErr := mgr.ResumeFrom(ctx, master.ID, rc)
	return f.finish(ctx, master, res, runErr)
}

// DryRun runs the first expanded record exactly once. Nothing is persisted or
// requeued, and the output is returned whatever its classification.
func (f *DataFactory) DryRun(ctx context.Context, data []map[string]interface{}, kwargs map[string]interface{}) (*job.DryRunResult, error) {
	records, err := f.prepare(data, kwargs)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, exception.NewConfigurationError(module, "dry run needs at least one input record")
	}
	mgr, err := job.NewManager(f.work, f.managerConfig(1))
	if err != nil {
		return nil, err
	}
	res, err := mgr.DryRun(ctx, records[0])
	if err != nil {
		return nil, err
	}
	logger.Infof("Dry run finished: status=%s, items=%d, duration=%s.", res.Status, len(res.Output), res.Duration)
	return res, nil
}

// MasterJobs lists the master jobs of this factory's project, newest first.
func (f *DataFactory) MasterJobs(ctx context.Context, statuses ...model.JobStatus) ([]*model.MasterJob, error) {
	if f.opts.storage == nil {
		return nil, exception.NewConfigurationError(module, "listing master jobs requires a storage backend")
	}
	jobs, err := f.opts.storage.ListMasterJobs(ctx, f.opts.projectID, statuses...)
	if err != nil {
		return nil, storageError("failed to list master jobs", err)
	}
	return jobs, nil
}

// finish derives the terminal status, persists it and notifies the listeners.
func (f *DataFactory) finish(ctx context.Context, master *model.MasterJob, res *job.Result, runErr error) ([]interface{}, error) {
	var counters model.Counters
	if res != nil {
		counters = res.Counters
	}
	status, jobErr, retErr := resolveStatus(ctx, master, counters, runErr)
	master.MarkAsFinished(status, counters, jobErr)

	// The final status is written even when the run was cancelled.
	endCtx := context.WithoutCancel(ctx)
	if s := f.opts.storage; s != nil {
		if err := s.LogMasterJobEnd(endCtx, master); err != nil {
			err = storageError("failed to log master job end", err)
			if retErr == nil {
				retErr = err
			} else {
				logger.Errorf("Master job %s: %v", master.ID, err)
			}
		}
	}
	for _, l := range f.opts.jobListeners {
		l.AfterJob(endCtx, master, counters)
	}

	logger.Infof("Master job %s finished with status %s: completed=%d/%d, attempted=%d, failed=%d, filtered=%d, duplicate=%d.",
		master.ID, status, counters.Completed, master.TargetCount, counters.Total, counters.Failed, counters.Filtered, counters.Duplicate)

	if res == nil || counters.Completed == 0 {
		return nil, retErr
	}
	return res.Flatten(), retErr
}

// resolveStatus returns the terminal status, the error recorded on the master
// job and the error returned to the caller.
func resolveStatus(ctx context.Context, master *model.MasterJob, c model.Counters, runErr error) (model.JobStatus, error, error) {
	switch {
	case runErr != nil && exception.IsStorageError(runErr):
		return model.JobStatusFailed, runErr, runErr
	case runErr != nil && ctx.Err() != nil:
		return model.JobStatusCancelled, runErr, runErr
	case runErr != nil:
		return model.JobStatusFailed, runErr, runErr
	case c.Completed == 0:
		err := exception.NewNoRecordsGeneratedError(module, master.ID, c.Total)
		return model.JobStatusFailed, err, err
	case c.Completed < master.TargetCount:
		logger.Warnf("Master job %s: inputs exhausted their attempts with %d of %d records completed.", master.ID, c.Completed, master.TargetCount)
		err := exception.NewBatchErrorf(module, "%d of %d records completed", c.Completed, master.TargetCount, exception.ErrAttemptsExhausted)
		return model.JobStatusCompletedWithErrors, err, nil
	default:
		return model.JobStatusCompleted, nil, nil
	}
}

func storageError(message string, err error) error {
	if exception.IsStorageError(err) {
		return err
	}
	return exception.NewStorageError(module, message, err)
}
