package hook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/datagen/pkg/batch/component/hook"
	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/state"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

func TestDedupHook_HashKey(t *testing.T) {
	ctx := context.Background()
	st := state.New(nil)
	h := hook.NewDedupHook(nil)

	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, []interface{}{"a", 1}, st))
	assert.Equal(t, model.RecordStatusDuplicate, h.OnRecordComplete(ctx, []interface{}{"a", 1}, st))
	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, []interface{}{"b"}, st))
}

func TestDedupHook_CustomKeyAndKeyError(t *testing.T) {
	ctx := context.Background()
	st := state.New(nil)
	h := hook.NewDedupHook(func(output []interface{}) (string, error) {
		if len(output) == 0 {
			return "", errors.New("empty")
		}
		return output[0].(string), nil
	})

	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, []interface{}{"x", 1}, st))
	assert.Equal(t, model.RecordStatusDuplicate, h.OnRecordComplete(ctx, []interface{}{"x", 2}, st))
	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, nil, st))
	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, nil, st))

	_, seen := st.Get(hook.DedupKeyPrefix + "x")
	assert.True(t, seen)
}

func TestDedupHook_ReplayMarksOutputsSeen(t *testing.T) {
	ctx := context.Background()
	st := state.New(nil)
	h := hook.NewDedupHook(nil)
	replay, ok := h.(port.ReplayHook)
	assert.True(t, ok)

	replay.OnRecordReplay(ctx, []interface{}{map[string]interface{}{"n": 1}}, st)
	replay.OnRecordReplay(ctx, []interface{}{map[string]interface{}{"n": 1}}, st)

	assert.Equal(t, model.RecordStatusDuplicate, h.OnRecordComplete(ctx, []interface{}{map[string]interface{}{"n": 1}}, st))
	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, []interface{}{map[string]interface{}{"n": 2}}, st))
	assert.Len(t, st.Snapshot(), 2)
}

func TestDedupHook_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	st := state.New(nil)
	h := hook.NewDedupHook(nil)

	var mu sync.Mutex
	completed := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.OnRecordComplete(ctx, []interface{}{"same"}, st) == model.RecordStatusCompleted {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, completed)
}

func TestFilterHook(t *testing.T) {
	ctx := context.Background()
	h := hook.NewFilterHook(func(output []interface{}) bool { return len(output) > 0 })
	assert.Equal(t, model.RecordStatusCompleted, h.OnRecordComplete(ctx, []interface{}{1}, state.New(nil)))
	assert.Equal(t, model.RecordStatusFiltered, h.OnRecordComplete(ctx, nil, state.New(nil)))
}

func TestErrorCountHook(t *testing.T) {
	ctx := context.Background()
	st := state.New(nil)
	h := hook.NewErrorCountHook("errors")

	h.OnRecordError(ctx, exception.NewTaskError("task", "boom", errors.New("x")), st)
	h.OnRecordError(ctx, exception.NewTaskTimeoutError("task", 0), st)
	h.OnRecordError(ctx, errors.New("plain"), st)

	assert.Equal(t, 3, st.GetInt("errors"))
	assert.Equal(t, 1, st.GetInt("errors."+exception.TaskFailedError))
	assert.Equal(t, 1, st.GetInt("errors."+exception.TaskTimeoutError))
	assert.Equal(t, 1, st.GetInt("errors.Error"))
}
