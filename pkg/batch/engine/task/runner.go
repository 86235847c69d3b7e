// Package task runs a single attempt of the work function under a timeout.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

const module = "task"

// Runner executes the work function for one input record.
// It never retries; requeueing is the job manager's concern.
type Runner struct{}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{}
}

type result struct {
	output []interface{}
	err    error
}

// Run calls work with input and waits at most timeout for it to return.
// A timeout of zero or less waits indefinitely.
//
// Errors returned by, or panics raised in, the work function are wrapped with
// exception.ErrTaskFailed; an exceeded timeout yields exception.ErrTaskTimeout.
// The work function receives a context that is cancelled when the timeout
// fires, but a function that ignores its context keeps running in the
// background until it returns; its result is then discarded.
func (r *Runner) Run(ctx context.Context, work port.WorkFunc, input model.InputRecord, timeout time.Duration) ([]interface{}, error) {
	taskCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Errorf("Work function panicked: %v", p)
				done <- result{err: exception.NewTaskError(module, "work function panicked", fmt.Errorf("panic: %v", p))}
			}
		}()
		out, err := work.Call(taskCtx, input)
		done <- result{output: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if exception.IsTaskError(res.err) {
				return nil, res.err
			}
			// Only the runner's own deadline is a timeout; a deadline the work
			// function set on an inner call is an ordinary failure.
			if ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
				return nil, exception.NewTaskTimeoutError(module, timeout)
			}
			return nil, exception.NewTaskError(module, "work function failed", res.err)
		}
		return res.output, nil
	case <-taskCtx.Done():
		if ctx.Err() != nil {
			return nil, exception.NewTaskError(module, "task cancelled", ctx.Err())
		}
		return nil, exception.NewTaskTimeoutError(module, timeout)
	}
}
