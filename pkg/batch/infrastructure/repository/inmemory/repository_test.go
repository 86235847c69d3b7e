package inmemory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

func TestInMemoryStorage_MasterJobs(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewInMemoryStorage()
	require.NoError(t, s.Setup(ctx))

	first := model.NewMasterJob("proj", 2)
	second := model.NewMasterJob("proj", 3)
	other := model.NewMasterJob("other", 1)
	for _, j := range []*model.MasterJob{first, second, other} {
		require.NoError(t, s.LogMasterJobStart(ctx, j))
	}
	assert.Error(t, s.LogMasterJobStart(ctx, first), "duplicate ID")

	first.MarkAsFinished(model.JobStatusCompleted, model.Counters{Completed: 2, Total: 2}, nil)
	require.NoError(t, s.LogMasterJobEnd(ctx, first))
	require.NoError(t, s.UpdateMasterJobStatus(ctx, second.ID, model.JobStatusCancelled))

	got, err := s.GetMasterJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.CompletedCount)

	got.Status = model.JobStatusFailed
	again, err := s.GetMasterJob(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, again.Status, "returned jobs are copies")

	all, err := s.ListMasterJobs(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	cancelled, err := s.ListMasterJobs(ctx, "proj", model.JobStatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, second.ID, cancelled[0].ID)

	_, err = s.GetMasterJob(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrMasterJobNotFound)
	assert.ErrorIs(t, err, exception.ErrNotFound)
	assert.ErrorIs(t, s.LogMasterJobEnd(ctx, model.NewMasterJob("proj", 1)), repository.ErrMasterJobNotFound)
	assert.ErrorIs(t, s.UpdateMasterJobStatus(ctx, "missing", model.JobStatusFailed), repository.ErrMasterJobNotFound)
}

func TestInMemoryStorage_ExecutionJobsAndRecords(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewInMemoryStorage()
	master := model.NewMasterJob("proj", 2)
	require.NoError(t, s.LogMasterJobStart(ctx, master))

	input := model.InputRecord{"topic": "go"}
	hash, err := input.Hash()
	require.NoError(t, err)

	ok := model.NewExecutionJob(master.ID, input, hash)
	failed := model.NewExecutionJob(master.ID, input, hash)
	require.NoError(t, s.LogExecutionJobStart(ctx, ok))
	require.NoError(t, s.LogExecutionJobStart(ctx, failed))
	ok.Finish(model.RecordStatusCompleted, 1, nil)
	failed.Finish(model.RecordStatusFailed, 1, errors.New("boom"))
	require.NoError(t, s.LogExecutionJobEnd(ctx, ok))
	require.NoError(t, s.LogExecutionJobEnd(ctx, failed))

	jobs, err := s.ListExecutionJobs(ctx, master.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	completed, err := s.ListExecutionJobsByMasterIDAndConfigHash(ctx, master.ID, hash, model.RecordStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, ok.ID, completed[0].ID)

	none, err := s.ListExecutionJobsByMasterIDAndConfigHash(ctx, master.ID, "other-hash")
	require.NoError(t, err)
	assert.Empty(t, none)

	payload := []byte(`{"question":"why"}`)
	ref, err := s.SaveRecordData(ctx, "rec-1", master.ID, ok.ID, payload)
	require.NoError(t, err)
	payload[0] = 'X'
	data, err := s.GetRecordData(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, `{"question":"why"}`, string(data), "payloads are copied on save")

	rec := &model.Record{ID: "rec-1", JobID: ok.ID, MasterJobID: master.ID, Status: model.RecordStatusCompleted, OutputRef: ref}
	require.NoError(t, s.LogRecordMetadata(ctx, rec))
	assert.Error(t, s.LogRecordMetadata(ctx, rec), "duplicate ID")
	require.NoError(t, s.LogRecordMetadata(ctx, &model.Record{ID: "rec-2", JobID: failed.ID, MasterJobID: master.ID, Status: model.RecordStatusFailed, ErrorMessage: "boom"}))

	byJob, err := s.ListRecordMetadata(ctx, master.ID, ok.ID)
	require.NoError(t, err)
	require.Len(t, byJob, 1)
	assert.Equal(t, ref, byJob[0].OutputRef)

	byMaster, err := s.ListRecordMetadata(ctx, master.ID, "")
	require.NoError(t, err)
	assert.Len(t, byMaster, 2)

	_, err = s.GetRecordData(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	_, err = s.GetRecordMetadata(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	_, err = s.GetExecutionJob(ctx, "missing")
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestInMemoryStorage_RequestConfig(t *testing.T) {
	ctx := context.Background()
	s := inmemory.NewInMemoryStorage()

	rc := &model.RequestConfig{
		ProjectID:      "proj",
		Inputs:         []model.InputRecord{{"topic": "a"}, {"topic": "a"}, {"topic": "b"}},
		TargetCount:    3,
		MaxConcurrency: 2,
	}
	ref, err := s.SaveRequestConfig(ctx, "master-1", rc)
	require.NoError(t, err)
	assert.Equal(t, "master-1", ref)

	got, err := s.GetRequestConfig(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, rc.Inputs, got.Inputs)
	assert.Equal(t, 3, got.TargetCount)

	_, err = s.GetRequestConfig(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRequestConfigNotFound)
	assert.NoError(t, s.Close())
}
