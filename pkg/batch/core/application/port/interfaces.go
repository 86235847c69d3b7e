// Package port defines the interfaces through which user code plugs into the
// engine: the work function, completion and error hooks, listeners and
// progress reporters.
package port

import (
	"context"
	"time"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/state"
)

// Parameter describes one keyword parameter accepted by a work function.
type Parameter struct {
	Name       string
	HasDefault bool
}

// Required declares a parameter that every input record must supply.
func Required(name string) Parameter { return Parameter{Name: name} }

// Optional declares a parameter with a default value.
func Optional(name string) Parameter { return Parameter{Name: name, HasDefault: true} }

// WorkFunc is the unit of work executed once per attempt. It receives one
// input record and returns zero or more output items.
type WorkFunc interface {
	// Call executes the work for one input record.
	Call(ctx context.Context, input model.InputRecord) ([]interface{}, error)

	// Parameters returns the declared parameters used to validate input records.
	// A nil result disables validation.
	Parameters() []Parameter
}

type workFunc struct {
	fn     func(ctx context.Context, input model.InputRecord) ([]interface{}, error)
	params []Parameter
}

// NewWorkFunc adapts a plain function into a WorkFunc declaring params.
// With no params the function accepts any keys.
func NewWorkFunc(fn func(ctx context.Context, input model.InputRecord) ([]interface{}, error), params ...Parameter) WorkFunc {
	return &workFunc{fn: fn, params: params}
}

func (w *workFunc) Call(ctx context.Context, input model.InputRecord) ([]interface{}, error) {
	return w.fn(ctx, input)
}

func (w *workFunc) Parameters() []Parameter {
	if len(w.params) == 0 {
		return nil
	}
	return w.params
}

// CompletionHook classifies the output of a successful attempt.
// Hooks run in order; when verdicts disagree, duplicate beats filtered beats completed.
type CompletionHook interface {
	OnRecordComplete(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus
}

// CompletionHookFunc adapts a function into a CompletionHook.
type CompletionHookFunc func(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus

// OnRecordComplete calls f.
func (f CompletionHookFunc) OnRecordComplete(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus {
	return f(ctx, output, st)
}

// ReplayHook is implemented by completion hooks that remember accepted
// outputs. On resume, OnRecordReplay is called for every replayed output
// before any new attempt runs.
type ReplayHook interface {
	OnRecordReplay(ctx context.Context, output []interface{}, st *state.SharedState)
}

// ErrorHook observes the error of a failed attempt. It cannot change the classification.
type ErrorHook interface {
	OnRecordError(ctx context.Context, err error, st *state.SharedState)
}

// ErrorHookFunc adapts a function into an ErrorHook.
type ErrorHookFunc func(ctx context.Context, err error, st *state.SharedState)

// OnRecordError calls f.
func (f ErrorHookFunc) OnRecordError(ctx context.Context, err error, st *state.SharedState) {
	f(ctx, err, st)
}

// TaskOutcome describes one finished attempt.
type TaskOutcome struct {
	MasterJobID    string
	ExecutionJobID string
	Input          model.InputRecord
	InputHash      string
	Attempt        int
	Status         model.RecordStatus
	Output         []interface{}
	Err            error
	Duration       time.Duration
	Requeued       bool
}

// JobListener is notified around a master job.
type JobListener interface {
	BeforeJob(ctx context.Context, job *model.MasterJob)
	AfterJob(ctx context.Context, job *model.MasterJob, counters model.Counters)
}

// TaskListener is notified around every attempt.
type TaskListener interface {
	BeforeTask(ctx context.Context, masterJobID string, input model.InputRecord)
	AfterTask(ctx context.Context, outcome TaskOutcome)
}

// ProgressReporter renders live progress of a run.
type ProgressReporter interface {
	// Start is called once with the target count.
	Start(target int)
	// Update is called after every counter change.
	Update(counters model.Counters)
	// Finish is called once with the final counters.
	Finish(counters model.Counters)
}
