package sql_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm/sqlite"
	storageConfig "github.com/tigerroll/datagen/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/datagen/pkg/batch/adapter/storage/local"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	sqlstore "github.com/tigerroll/datagen/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// newStorage opens a private in-memory sqlite database. A single pooled
// connection keeps every statement on the same database.
func newStorage(t *testing.T, mode string) *sqlstore.SQLStorage {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), gormadapter.NewGormConfig(""))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	conn := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "metadata")
	blobs, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType, BaseDir: t.TempDir()}, "payloads")
	require.NoError(t, err)

	s, err := sqlstore.NewSQLStorage(conn, blobs, sqlstore.Options{MigrationMode: mode})
	require.NoError(t, err)
	require.NoError(t, s.Setup(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewSQLStorage_Validation(t *testing.T) {
	_, err := sqlstore.NewSQLStorage(nil, nil, sqlstore.Options{})
	assert.True(t, exception.IsConfiguration(err))

	db, err := gorm.Open(gormsqlite.Open(":memory:"), gormadapter.NewGormConfig(""))
	require.NoError(t, err)
	conn := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "sqlite"}, "metadata")
	defer conn.Close()
	blobs, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType, BaseDir: t.TempDir()}, "payloads")
	require.NoError(t, err)

	_, err = sqlstore.NewSQLStorage(conn, blobs, sqlstore.Options{MigrationMode: "sometimes"})
	assert.True(t, exception.IsConfiguration(err))
	_, err = sqlstore.NewSQLStorage(conn, blobs, sqlstore.Options{MigrationMode: sqlstore.MigrationModeMigrate})
	assert.True(t, exception.IsConfiguration(err))
}

func TestMasterJob_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeAuto)

	m := model.NewMasterJob("proj", 5)
	m.RequestConfigRef = "request_configs/x.json"
	m.MarkAsStarted()
	require.NoError(t, s.LogMasterJobStart(ctx, m))

	got, err := s.GetMasterJob(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, got.Status)
	assert.Equal(t, "proj", got.ProjectID)
	assert.Equal(t, 5, got.TargetCount)
	assert.Equal(t, "request_configs/x.json", got.RequestConfigRef)
	require.NotNil(t, got.StartTime)
	assert.Nil(t, got.EndTime)

	m.MarkAsFinished(model.JobStatusCompletedWithErrors, model.Counters{Completed: 3, Failed: 2, Filtered: 1}, exception.ErrAttemptsExhausted)
	require.NoError(t, s.LogMasterJobEnd(ctx, m))

	got, err = s.GetMasterJob(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompletedWithErrors, got.Status)
	assert.Equal(t, 3, got.CompletedCount)
	assert.Equal(t, 2, got.FailedCount)
	assert.Equal(t, 1, got.FilteredCount)
	assert.Equal(t, 6, got.Attempted())
	assert.Equal(t, exception.AttemptsExhaustedError, got.ErrorMessage)
	require.NotNil(t, got.EndTime)

	require.NoError(t, s.UpdateMasterJobStatus(ctx, m.ID, model.JobStatusRunning))
	got, err = s.GetMasterJob(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, got.Status)
	assert.Equal(t, 3, got.CompletedCount, "status update leaves counters alone")
}

func TestMasterJob_NotFoundAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeAuto)

	_, err := s.GetMasterJob(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrMasterJobNotFound)
	assert.True(t, exception.IsNotFound(err))

	err = s.UpdateMasterJobStatus(ctx, "missing", model.JobStatusFailed)
	assert.ErrorIs(t, err, repository.ErrMasterJobNotFound)

	m := model.NewMasterJob("proj", 1)
	require.NoError(t, s.LogMasterJobStart(ctx, m))
	err = s.LogMasterJobStart(ctx, m)
	require.Error(t, err)
	assert.True(t, exception.IsStorageError(err))
}

func TestListMasterJobs_NewestFirstWithStatusFilter(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeAuto)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i, status := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCompleted} {
		m := model.NewMasterJob("proj", 1)
		m.CreateTime = base.Add(time.Duration(i) * time.Minute)
		m.Status = status
		require.NoError(t, s.LogMasterJobStart(ctx, m))
		ids = append(ids, m.ID)
	}
	other := model.NewMasterJob("other", 1)
	require.NoError(t, s.LogMasterJobStart(ctx, other))

	all, err := s.ListMasterJobs(ctx, "proj")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	completed, err := s.ListMasterJobs(ctx, "proj", model.JobStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, ids[2], completed[0].ID)
}

func TestExecutionJobs(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeAuto)

	in := model.InputRecord{"city": "Paris"}
	hash, err := in.Hash()
	require.NoError(t, err)

	done := model.NewExecutionJob("m-1", in, hash)
	require.NoError(t, s.LogExecutionJobStart(ctx, done))
	done.Finish(model.RecordStatusCompleted, 2, nil)
	require.NoError(t, s.LogExecutionJobEnd(ctx, done))

	failed := model.NewExecutionJob("m-1", in, hash)
	failed.CreateTime = done.CreateTime.Add(time.Millisecond)
	require.NoError(t, s.LogExecutionJobStart(ctx, failed))
	failed.Finish(model.RecordStatusFailed, 0, assert.AnError)
	require.NoError(t, s.LogExecutionJobEnd(ctx, failed))

	got, err := s.GetExecutionJob(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paris", got.RunConfig["city"])
	assert.Equal(t, hash, got.RunConfigHash)
	assert.Equal(t, 2, got.CompletedCount)
	require.NotNil(t, got.EndTime)

	all, err := s.ListExecutionJobs(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, done.ID, all[0].ID)
	assert.Equal(t, assert.AnError.Error(), all[1].ErrorMessage)

	completed, err := s.ListExecutionJobsByMasterIDAndConfigHash(ctx, "m-1", hash, model.RecordStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	none, err := s.ListExecutionJobsByMasterIDAndConfigHash(ctx, "m-1", "other-hash")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.GetExecutionJob(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrExecutionJobNotFound)

	ghost := model.NewExecutionJob("m-1", in, hash)
	assert.ErrorIs(t, s.LogExecutionJobEnd(ctx, ghost), repository.ErrExecutionJobNotFound)
}

func TestRecords_MetadataAndPayloads(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeAuto)

	start := time.Now()
	// Logged out of order; listing follows the item index.
	for _, idx := range []int{1, 0} {
		rec := &model.Record{
			ID:          model.NewID(),
			JobID:       "j-1",
			MasterJobID: "m-1",
			Status:      model.RecordStatusCompleted,
			Index:       idx,
			CreateTime:  start,
			EndTime:     start,
		}
		ref, err := s.SaveRecordData(ctx, rec.ID, "m-1", "j-1", []byte(fmt.Sprintf(`{"i":%d}`, idx)))
		require.NoError(t, err)
		assert.Equal(t, "records/m-1/j-1/"+rec.ID+".json", ref)
		rec.OutputRef = ref
		require.NoError(t, s.LogRecordMetadata(ctx, rec))
	}

	records, err := s.ListRecordMetadata(ctx, "m-1", "j-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, 1, records[1].Index)

	data, err := s.GetRecordData(ctx, records[0].OutputRef)
	require.NoError(t, err)
	assert.JSONEq(t, `{"i":0}`, string(data))

	got, err := s.GetRecordMetadata(ctx, records[1].ID)
	require.NoError(t, err)
	assert.Equal(t, records[1].OutputRef, got.OutputRef)

	others, err := s.ListRecordMetadata(ctx, "m-1", "j-2")
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = s.GetRecordData(ctx, "records/m-1/j-1/missing.json")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	_, err = s.GetRecordMetadata(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestRequestConfig_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeAuto)

	rc := &model.RequestConfig{
		ProjectID:      "proj",
		Inputs:         []model.InputRecord{{"city": "A"}, {"city": "B"}},
		TargetCount:    4,
		MaxConcurrency: 2,
		TaskTimeout:    time.Second,
	}
	ref, err := s.SaveRequestConfig(ctx, "m-1", rc)
	require.NoError(t, err)
	assert.Equal(t, "request_configs/m-1.json", ref)

	got, err := s.GetRequestConfig(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "proj", got.ProjectID)
	assert.Equal(t, 4, got.TargetCount)
	assert.Equal(t, time.Second, got.TaskTimeout)
	require.Len(t, got.Inputs, 2)
	assert.Equal(t, "B", got.Inputs[1]["city"])

	_, err = s.GetRequestConfig(ctx, "request_configs/missing.json")
	assert.ErrorIs(t, err, repository.ErrRequestConfigNotFound)
}

func TestMigrationModeNone_MissingTables(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, sqlstore.MigrationModeNone)

	_, err := s.GetMasterJob(ctx, "m-1")
	assert.ErrorIs(t, err, repository.ErrMasterJobNotFound)

	err = s.LogMasterJobStart(ctx, model.NewMasterJob("proj", 1))
	require.Error(t, err)
	assert.True(t, exception.IsStorageError(err))
	assert.Contains(t, err.Error(), "metadata tables missing")

	jobs, err := s.ListMasterJobs(ctx, "proj")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
