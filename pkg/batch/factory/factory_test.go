package factory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/state"
	"github.com/tigerroll/datagen/pkg/batch/engine/retry"
	"github.com/tigerroll/datagen/pkg/batch/factory"
	"github.com/tigerroll/datagen/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/test"
)

func cityData(names ...string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]interface{}{"city": n})
	}
	return out
}

func cityRecords(in map[string]interface{}) string {
	return fmt.Sprintf("record-%v", in["city"])
}

func onlyMasterJob(t *testing.T, f *factory.DataFactory) *model.MasterJob {
	t.Helper()
	jobs, err := f.MasterJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestNew_Validation(t *testing.T) {
	_, err := factory.New(test.Echo())
	assert.True(t, exception.IsConfiguration(err), "max concurrency is required")

	_, err = factory.New(nil, factory.WithMaxConcurrency(1))
	assert.True(t, exception.IsConfiguration(err))

	_, err = factory.New(test.Echo(), factory.WithMaxConcurrency(1), factory.WithTargetCount(-1))
	assert.True(t, exception.IsConfiguration(err))

	_, err = factory.New(test.Echo(), factory.WithMaxConcurrency(1), factory.WithListeners("not a listener"))
	assert.True(t, exception.IsConfiguration(err))
}

func TestNew_FromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Datagen.Job.ProjectID = "proj-1"

	f, err := factory.New(test.Echo(), factory.FromConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, "proj-1", f.ProjectID())
}

func TestRun_BroadcastProducesOneRecordPerPrimaryMapping(t *testing.T) {
	work := test.Echo(port.Required("city"), port.Required("n"))
	f, err := factory.New(work, factory.WithMaxConcurrency(2))
	require.NoError(t, err)

	out, err := f.Run(context.Background(), cityData("A", "B"), map[string]interface{}{"n": 5})
	require.NoError(t, err)

	assert.Len(t, out, 2)
	assert.Equal(t, int64(2), work.Calls())
}

func TestRun_MismatchedLengthsFailBeforeAnyTask(t *testing.T) {
	store := test.NewCountingStorage(inmemory.NewInMemoryStorage())
	work := test.Echo()
	f, err := factory.New(work, factory.WithMaxConcurrency(2), factory.WithStorage(store))
	require.NoError(t, err)

	_, err = f.Run(context.Background(), cityData("A", "B"), map[string]interface{}{"topic": []string{"x"}})
	require.Error(t, err)
	assert.True(t, exception.IsConfiguration(err))
	assert.Equal(t, int64(0), work.Calls())
	assert.Equal(t, int64(0), store.Writes())
}

func TestRun_ParameterMismatchFailsBeforeAnyTask(t *testing.T) {
	work := test.Echo(port.Required("city"))
	f, err := factory.New(work, factory.WithMaxConcurrency(1))
	require.NoError(t, err)

	_, err = f.Run(context.Background(), nil, map[string]interface{}{"town": "A"})
	assert.True(t, exception.IsConfiguration(err))
	assert.Equal(t, int64(0), work.Calls())
}

func TestRun_ReachesTargetAndPersistsMasterJob(t *testing.T) {
	store := inmemory.NewInMemoryStorage()
	f, err := factory.New(test.Echo(),
		factory.WithMaxConcurrency(3),
		factory.WithTargetCount(2),
		factory.WithStorage(store),
		factory.WithProjectID("proj"),
	)
	require.NoError(t, err)

	out, err := f.Run(context.Background(), cityData("A", "B", "C", "D"), nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	master := onlyMasterJob(t, f)
	assert.Equal(t, model.JobStatusCompleted, master.Status)
	assert.Equal(t, "proj", master.ProjectID)
	assert.Equal(t, 2, master.CompletedCount)
	assert.NotNil(t, master.StartTime)
	assert.NotNil(t, master.EndTime)

	rc, err := store.GetRequestConfig(context.Background(), master.RequestConfigRef)
	require.NoError(t, err)
	assert.Len(t, rc.Inputs, 4)
	assert.Equal(t, 2, rc.TargetCount)
	assert.Equal(t, factory.DefaultMaxAttemptsPerInput, rc.MaxAttemptsPerInput)
}

func TestRun_TargetAboveInputCountCyclesInputs(t *testing.T) {
	store := inmemory.NewInMemoryStorage()
	work := test.NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		return []interface{}{cityRecords(in)}, nil
	})
	f, err := factory.New(work,
		factory.WithMaxConcurrency(2),
		factory.WithTargetCount(5),
		factory.WithStorage(store),
	)
	require.NoError(t, err)

	out, err := f.Run(context.Background(), cityData("A", "B"), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{"record-A", "record-B", "record-A", "record-B", "record-A"}, out)
	assert.Equal(t, int64(5), work.Calls())

	master := onlyMasterJob(t, f)
	assert.Equal(t, model.JobStatusCompleted, master.Status)
	assert.Equal(t, 5, master.CompletedCount)

	rc, err := store.GetRequestConfig(context.Background(), master.RequestConfigRef)
	require.NoError(t, err)
	require.Len(t, rc.Inputs, 5)
	assert.Equal(t, "A", rc.Inputs[4]["city"])

	replayed, err := f.ReRun(context.Background(), master.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, out, replayed)
	assert.Equal(t, int64(5), work.Calls())
}

func TestRun_AllFailRaisesNoRecordsGenerated(t *testing.T) {
	store := inmemory.NewInMemoryStorage()
	work := test.AlwaysFail()
	f, err := factory.New(work, factory.WithMaxConcurrency(2), factory.WithStorage(store))
	require.NoError(t, err)

	out, err := f.Run(context.Background(), cityData("A", "B"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrNoRecordsGenerated)
	assert.Empty(t, out)
	assert.Equal(t, int64(2*factory.DefaultMaxAttemptsPerInput), work.Calls())

	master := onlyMasterJob(t, f)
	assert.Equal(t, model.JobStatusFailed, master.Status)
	assert.Equal(t, 2*factory.DefaultMaxAttemptsPerInput, master.FailedCount)
	assert.NotEmpty(t, master.ErrorMessage)
}

func TestRun_AllFilteredRaisesNoRecordsGenerated(t *testing.T) {
	filterAll := port.CompletionHookFunc(func(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus {
		return model.RecordStatusFiltered
	})
	f, err := factory.New(test.Echo(),
		factory.WithMaxConcurrency(1),
		factory.WithCompletionHooks(filterAll),
		factory.WithRetryPolicy(retry.NewPolicy(retry.Options{MaxAttempts: 1})),
	)
	require.NoError(t, err)

	_, err = f.Run(context.Background(), cityData("A"), nil)
	assert.ErrorIs(t, err, exception.ErrNoRecordsGenerated)
}

func TestRun_PartialCompletion(t *testing.T) {
	store := inmemory.NewInMemoryStorage()
	work := test.NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		if in["city"] == "C" {
			return nil, test.ErrWork
		}
		return []interface{}{cityRecords(in)}, nil
	})
	f, err := factory.New(work,
		factory.WithMaxConcurrency(2),
		factory.WithStorage(store),
		factory.WithRetryPolicy(retry.NewPolicy(retry.Options{MaxAttempts: 2})),
	)
	require.NoError(t, err)

	out, err := f.Run(context.Background(), cityData("A", "B", "C"), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{"record-A", "record-B"}, out)

	master := onlyMasterJob(t, f)
	assert.Equal(t, model.JobStatusCompletedWithErrors, master.Status)
	assert.Equal(t, 2, master.FailedCount)
}

func TestReRun_ReplaysAndRunsShortfall(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewInMemoryStorage()
	failC := test.NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		if in["city"] == "C" {
			return nil, test.ErrWork
		}
		return []interface{}{cityRecords(in)}, nil
	})
	first, err := factory.New(failC,
		factory.WithMaxConcurrency(2),
		factory.WithStorage(store),
		factory.WithProjectID("proj"),
		factory.WithRetryPolicy(retry.NewPolicy(retry.Options{MaxAttempts: 1})),
	)
	require.NoError(t, err)
	_, err = first.Run(ctx, cityData("A", "B", "C"), nil)
	require.NoError(t, err)
	master := onlyMasterJob(t, first)

	counting := test.NewCountingStorage(store)
	work := test.NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		return []interface{}{cityRecords(in)}, nil
	})
	second, err := factory.New(work, factory.WithMaxConcurrency(2), factory.WithStorage(counting), factory.WithProjectID("proj"))
	require.NoError(t, err)

	out, err := second.ReRun(ctx, master.ID)
	require.NoError(t, err)
	// Replayed outputs come first, in request order.
	assert.Equal(t, []interface{}{"record-A", "record-B", "record-C"}, out)
	assert.Equal(t, int64(1), work.Calls())

	reloaded, err := store.GetMasterJob(ctx, master.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, reloaded.Status)
	assert.Equal(t, 3, reloaded.CompletedCount)

	// A second re-run replays everything and touches nothing.
	before := counting.Writes()
	out, err = second.ReRun(ctx, master.ID)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, int64(1), work.Calls())
	assert.Equal(t, []string{"UpdateMasterJobStatus", "LogMasterJobEnd"}, counting.Calls()[before:])
}

func TestReRun_RequiresStorage(t *testing.T) {
	f, err := factory.New(test.Echo(), factory.WithMaxConcurrency(1))
	require.NoError(t, err)

	_, err = f.ReRun(context.Background(), "any")
	assert.True(t, exception.IsConfiguration(err))
}

func TestReRun_UnknownMasterJob(t *testing.T) {
	f, err := factory.New(test.Echo(), factory.WithMaxConcurrency(1), factory.WithStorage(inmemory.NewInMemoryStorage()))
	require.NoError(t, err)

	_, err = f.ReRun(context.Background(), "missing")
	assert.True(t, exception.IsNotFound(err))
}

func TestDryRun_OneTaskNoWrites(t *testing.T) {
	store := test.NewCountingStorage(inmemory.NewInMemoryStorage())
	work := test.Echo()
	f, err := factory.New(work, factory.WithMaxConcurrency(4), factory.WithStorage(store))
	require.NoError(t, err)

	res, err := f.DryRun(context.Background(), cityData("A", "B", "C"), map[string]interface{}{"n": 1})
	require.NoError(t, err)

	assert.Equal(t, int64(1), work.Calls())
	assert.Equal(t, int64(0), store.Writes())
	assert.Equal(t, model.RecordStatusCompleted, res.Status)
	assert.Equal(t, model.InputRecord{"city": "A", "n": 1}, res.Input)
	require.Len(t, res.Output, 1)
}

func TestRun_CancelledMasterJob(t *testing.T) {
	store := inmemory.NewInMemoryStorage()
	ctx, cancel := context.WithCancel(context.Background())
	work := test.NewCountingWork(func(ctx context.Context, in model.InputRecord, _ int64) ([]interface{}, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f, err := factory.New(work, factory.WithMaxConcurrency(1), factory.WithStorage(store))
	require.NoError(t, err)

	_, err = f.Run(ctx, cityData("A", "B"), nil)
	require.ErrorIs(t, err, context.Canceled)

	master := onlyMasterJob(t, f)
	assert.Equal(t, model.JobStatusCancelled, master.Status)
}

func TestRun_NotifiesListenersAndRecorder(t *testing.T) {
	jobListener := &test.MockJobListener{}
	jobListener.On("BeforeJob", mock.Anything, mock.Anything).Return().Once()
	jobListener.On("AfterJob", mock.Anything, mock.MatchedBy(func(j *model.MasterJob) bool {
		return j.Status == model.JobStatusCompleted
	}), mock.MatchedBy(func(c model.Counters) bool { return c.Completed == 2 })).Return().Once()

	recorder := &test.MockMetricRecorder{}
	recorder.On("RecordJobStart", mock.Anything, mock.Anything).Return()
	recorder.On("RecordJobEnd", mock.Anything, mock.Anything).Return()
	recorder.On("RecordTaskStart", mock.Anything, mock.Anything).Return()
	recorder.On("RecordTaskOutcome", mock.Anything, mock.Anything, model.RecordStatusCompleted, mock.Anything).Return()

	f, err := factory.New(test.Echo(),
		factory.WithMaxConcurrency(2),
		factory.WithListeners(jobListener),
		factory.WithMetricRecorder(recorder),
	)
	require.NoError(t, err)

	_, err = f.Run(context.Background(), cityData("A", "B"), nil)
	require.NoError(t, err)

	jobListener.AssertExpectations(t)
	recorder.AssertNumberOfCalls(t, "RecordJobStart", 1)
	recorder.AssertNumberOfCalls(t, "RecordJobEnd", 1)
	recorder.AssertNumberOfCalls(t, "RecordTaskStart", 2)
	recorder.AssertNumberOfCalls(t, "RecordTaskOutcome", 2)
	recorder.AssertNotCalled(t, "RecordRequeue", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_StateIsSharedAcrossRuns(t *testing.T) {
	countHook := port.CompletionHookFunc(func(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus {
		st.Increment("seen", 1)
		return model.RecordStatusCompleted
	})
	f, err := factory.New(test.Echo(),
		factory.WithMaxConcurrency(2),
		factory.WithCompletionHooks(countHook),
		factory.WithInitialState(map[string]interface{}{"seen": 10}),
		factory.WithTaskTimeout(time.Second),
	)
	require.NoError(t, err)

	_, err = f.Run(context.Background(), cityData("A", "B"), nil)
	require.NoError(t, err)
	_, err = f.Run(context.Background(), cityData("C"), nil)
	require.NoError(t, err)

	assert.Equal(t, 13, f.State().GetInt("seen"))
}
