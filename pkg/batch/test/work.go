package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// ErrWork is the error returned by the failing work functions below.
var ErrWork = errors.New("work failed")

// CountingWork wraps a function and counts its calls and the peak concurrency.
type CountingWork struct {
	fn     func(ctx context.Context, input model.InputRecord, call int64) ([]interface{}, error)
	params []port.Parameter

	calls  atomic.Int64
	active atomic.Int64
	peakMu sync.Mutex
	peak   int64
}

// NewCountingWork creates a CountingWork around fn. call is the 1-based call number.
func NewCountingWork(fn func(ctx context.Context, input model.InputRecord, call int64) ([]interface{}, error), params ...port.Parameter) *CountingWork {
	return &CountingWork{fn: fn, params: params}
}

// Echo returns a work function whose single output item is the input record.
func Echo(params ...port.Parameter) *CountingWork {
	return NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		return []interface{}{map[string]interface{}(in.Copy())}, nil
	}, params...)
}

// AlwaysFail returns a work function that always fails with ErrWork.
func AlwaysFail() *CountingWork {
	return NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		return nil, ErrWork
	})
}

// FailEveryOther returns a work function that fails on even-numbered calls.
func FailEveryOther() *CountingWork {
	return NewCountingWork(func(ctx context.Context, in model.InputRecord, call int64) ([]interface{}, error) {
		if call%2 == 0 {
			return nil, fmt.Errorf("call %d: %w", call, ErrWork)
		}
		return []interface{}{map[string]interface{}(in.Copy())}, nil
	})
}

// Call implements port.WorkFunc.
func (w *CountingWork) Call(ctx context.Context, input model.InputRecord) ([]interface{}, error) {
	n := w.calls.Add(1)
	cur := w.active.Add(1)
	defer w.active.Add(-1)
	w.peakMu.Lock()
	if cur > w.peak {
		w.peak = cur
	}
	w.peakMu.Unlock()
	return w.fn(ctx, input, n)
}

// Parameters implements port.WorkFunc.
func (w *CountingWork) Parameters() []port.Parameter {
	if len(w.params) == 0 {
		return nil
	}
	return w.params
}

// Calls returns the number of calls made so far.
func (w *CountingWork) Calls() int64 {
	return w.calls.Load()
}

// PeakConcurrency returns the highest number of simultaneous calls observed.
func (w *CountingWork) PeakConcurrency() int64 {
	w.peakMu.Lock()
	defer w.peakMu.Unlock()
	return w.peak
}

var _ port.WorkFunc = (*CountingWork)(nil)
