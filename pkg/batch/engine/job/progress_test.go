package job_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/engine/job"
	"github.com/tigerroll/datagen/pkg/batch/test"
)

func TestOrderedProgress_DropsStaleSnapshots(t *testing.T) {
	next := &test.MockProgressReporter{}
	next.On("Start", 3).Return()
	next.On("Update", model.Counters{Total: 1}).Return().Once()
	next.On("Update", model.Counters{Total: 3}).Return().Once()
	next.On("Finish", model.Counters{Total: 3}).Return()

	p := job.NewOrderedProgress(next)
	p.Start(3)
	p.Update(model.Counters{Total: 1})
	p.Update(model.Counters{Total: 3})
	p.Update(model.Counters{Total: 2})
	p.Finish(model.Counters{Total: 3})

	next.AssertExpectations(t)
	next.AssertNumberOfCalls(t, "Update", 2)
}

type totalsRecorder struct {
	mu     sync.Mutex
	totals []int
}

func (r *totalsRecorder) Start(int) {}

func (r *totalsRecorder) Update(c model.Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals = append(r.totals, c.Total)
}

func (r *totalsRecorder) Finish(model.Counters) {}

func TestRun_ProgressUpdatesAreMonotonic(t *testing.T) {
	rec := &totalsRecorder{}
	m, err := job.NewManager(test.Echo(), job.Config{MaxConcurrency: 8, Progress: rec})
	require.NoError(t, err)

	_, err = m.Run(context.Background(), "m-1", numbered(64))
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.totals)
	assert.True(t, sort.IntsAreSorted(rec.totals), "totals: %v", rec.totals)
	assert.Equal(t, 64, rec.totals[len(rec.totals)-1])
}
