package metrics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/fx/fxtest"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/listener/metrics"
	"github.com/tigerroll/datagen/pkg/batch/test"
)

func TestMetricsListeners_Forward(t *testing.T) {
	ctx := context.Background()
	rec := new(test.MockMetricRecorder)
	job := model.NewMasterJob("proj", 2)

	rec.On("RecordJobStart", ctx, job).Once()
	rec.On("RecordJobEnd", ctx, job).Once()
	rec.On("RecordTaskStart", ctx, job.ID).Once()
	rec.On("RecordTaskOutcome", ctx, job.ID, model.RecordStatusFailed, 5*time.Millisecond).Once()
	rec.On("RecordRequeue", ctx, job.ID, model.RecordStatusFailed).Once()
	rec.On("RecordTaskOutcome", ctx, job.ID, model.RecordStatusCompleted, time.Millisecond).Once()

	jl := metrics.NewMetricsJobListener(rec)
	tl := metrics.NewMetricsTaskListener(rec)

	jl.BeforeJob(ctx, job)
	tl.BeforeTask(ctx, job.ID, model.InputRecord{"topic": "go"})
	tl.AfterTask(ctx, port.TaskOutcome{MasterJobID: job.ID, Status: model.RecordStatusFailed, Err: errors.New("boom"), Duration: 5 * time.Millisecond, Requeued: true})
	tl.AfterTask(ctx, port.TaskOutcome{MasterJobID: job.ID, Status: model.RecordStatusCompleted, Duration: time.Millisecond})
	jl.AfterJob(ctx, job, model.Counters{Completed: 1, Failed: 1, Total: 2})

	rec.AssertExpectations(t)
	rec.AssertNumberOfCalls(t, "RecordRequeue", 1)
}

func TestAsyncMetricRecorder_DrainsOnClose(t *testing.T) {
	rec := new(test.MockMetricRecorder)
	var wg sync.WaitGroup
	wg.Add(3)
	rec.On("RecordTaskStart", mock.Anything, "m-1").Run(func(mock.Arguments) { wg.Done() }).Times(3)

	async := metrics.NewAsyncMetricRecorder(10, rec)
	for i := 0; i < 3; i++ {
		async.RecordTaskStart(context.Background(), "m-1")
	}
	wg.Wait()
	async.Close()
	async.Close()

	async.RecordTaskStart(context.Background(), "m-1")
	rec.AssertNumberOfCalls(t, "RecordTaskStart", 3)
}

func TestAsyncMetricRecorderWrapper(t *testing.T) {
	cfg := config.NewConfig()
	rec := new(test.MockMetricRecorder)
	lc := fxtest.NewLifecycle(t)

	cfg.Datagen.Observability.MetricsAsyncBufferSize = 0
	assert.Same(t, rec, metrics.NewAsyncMetricRecorderWrapper(lc, cfg, rec))

	cfg.Datagen.Observability.MetricsAsyncBufferSize = 4
	assert.IsType(t, &metrics.AsyncMetricRecorder{}, metrics.NewAsyncMetricRecorderWrapper(lc, cfg, rec))

	lc.RequireStart()
	lc.RequireStop()
}
