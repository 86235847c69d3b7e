package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/engine/task"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		return []interface{}{in["city"]}, nil
	})

	out, err := task.NewRunner().Run(context.Background(), work, model.InputRecord{"city": "Paris"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"Paris"}, out)
}

func TestRun_WorkError(t *testing.T) {
	cause := errors.New("rate limited")
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		return nil, cause
	})

	_, err := task.NewRunner().Run(context.Background(), work, model.InputRecord{}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTaskFailed))
	assert.True(t, errors.Is(err, cause))
}

func TestRun_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		<-release
		return []interface{}{"late"}, nil
	})

	start := time.Now()
	_, err := task.NewRunner().Run(context.Background(), work, model.InputRecord{}, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTaskTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_ContextAwareTimeout(t *testing.T) {
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := task.NewRunner().Run(context.Background(), work, model.InputRecord{}, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTaskTimeout))
}

func TestRun_InnerDeadlineIsTaskFailure(t *testing.T) {
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		inner, cancel := context.WithTimeout(ctx, time.Millisecond)
		defer cancel()
		<-inner.Done()
		return nil, inner.Err()
	})

	_, err := task.NewRunner().Run(context.Background(), work, model.InputRecord{}, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTaskFailed))
	assert.False(t, errors.Is(err, exception.ErrTaskTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRun_Panic(t *testing.T) {
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		panic("boom")
	})

	_, err := task.NewRunner().Run(context.Background(), work, model.InputRecord{}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTaskFailed))
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	work := port.NewWorkFunc(func(ctx context.Context, in model.InputRecord) ([]interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := task.NewRunner().Run(ctx, work, model.InputRecord{}, time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, exception.ErrTaskTimeout))
	assert.True(t, errors.Is(err, context.Canceled))
}
