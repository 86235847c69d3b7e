package factory

import (
	"fmt"
	"time"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/engine/retry"
)

// DefaultMaxAttemptsPerInput is the retry cap used when no policy is configured.
const DefaultMaxAttemptsPerInput = 3

type options struct {
	maxConcurrency  int
	targetCount     int
	taskTimeout     time.Duration
	pollInterval    time.Duration
	completionHooks []port.CompletionHook
	errorHooks      []port.ErrorHook
	initialState    map[string]interface{}
	storage         repository.Storage
	projectID       string
	retryPolicy     retry.Policy
	progress        port.ProgressReporter
	recorder        metrics.MetricRecorder
	tracer          metrics.Tracer
	jobListeners    []port.JobListener
	taskListeners   []port.TaskListener
	maskedKeys      []string
	errs            []error
}

// Option configures a DataFactory.
type Option func(*options)

// WithMaxConcurrency sets the maximum number of attempts in flight. It is required.
func WithMaxConcurrency(n int) Option {
	return func(o *options) { o.maxConcurrency = n }
}

// WithTargetCount sets the number of completed records to produce.
// Zero means one per expanded input record.
func WithTargetCount(n int) Option {
	return func(o *options) { o.targetCount = n }
}

// WithTaskTimeout bounds every call of the work function. Zero disables the timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) { o.taskTimeout = d }
}

// WithPollInterval sets the scheduler's sleep while the queue is empty.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithCompletionHooks appends completion hooks. They run in order.
func WithCompletionHooks(hooks ...port.CompletionHook) Option {
	return func(o *options) { o.completionHooks = append(o.completionHooks, hooks...) }
}

// WithErrorHooks appends error hooks. They run in order.
func WithErrorHooks(hooks ...port.ErrorHook) Option {
	return func(o *options) { o.errorHooks = append(o.errorHooks, hooks...) }
}

// WithInitialState seeds the shared state handed to every hook.
func WithInitialState(initial map[string]interface{}) Option {
	return func(o *options) { o.initialState = initial }
}

// WithStorage enables persistence of master jobs, attempts and records.
func WithStorage(s repository.Storage) Option {
	return func(o *options) { o.storage = s }
}

// WithProjectID groups the master jobs of this factory. A random ID is used by default.
func WithProjectID(id string) Option {
	return func(o *options) { o.projectID = id }
}

// WithRetryPolicy replaces the default policy of DefaultMaxAttemptsPerInput attempts per input.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.retryPolicy = p }
}

// WithProgress renders live progress.
func WithProgress(p port.ProgressReporter) Option {
	return func(o *options) { o.progress = p }
}

// WithMetricRecorder records job and task metrics with r.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithTracer opens a span per master job and per attempt.
func WithTracer(t metrics.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMaskedKeys lists input keys whose values are masked in logs.
func WithMaskedKeys(keys ...string) Option {
	return func(o *options) { o.maskedKeys = append(o.maskedKeys, keys...) }
}

// WithListeners registers listeners. Each value must implement port.JobListener,
// port.TaskListener or both.
func WithListeners(listeners ...interface{}) Option {
	return func(o *options) {
		for _, l := range listeners {
			matched := false
			if jl, ok := l.(port.JobListener); ok {
				o.jobListeners = append(o.jobListeners, jl)
				matched = true
			}
			if tl, ok := l.(port.TaskListener); ok {
				o.taskListeners = append(o.taskListeners, tl)
				matched = true
			}
			if !matched {
				o.errs = append(o.errs, fmt.Errorf("listener of type %T implements neither JobListener nor TaskListener", l))
			}
		}
	}
}

// FromConfig applies the job, retry and security sections of cfg.
// Options given after it override its values.
func FromConfig(cfg *config.Config) Option {
	return func(o *options) {
		d := cfg.Datagen
		o.maxConcurrency = d.Job.MaxConcurrency
		o.targetCount = d.Job.TargetCount
		o.taskTimeout = d.Job.TaskTimeout()
		o.pollInterval = d.Job.PollInterval()
		if d.Job.ProjectID != "" {
			o.projectID = d.Job.ProjectID
		}
		o.retryPolicy = retry.NewPolicyFromConfig(d.Retry)
		o.maskedKeys = append(o.maskedKeys, d.Security.MaskedParameterKeys...)
	}
}
