// Package sql provides a relational implementation of repository.Storage.
// Master jobs, execution jobs and record metadata live in gorm-managed tables;
// record payloads and request configs live in a blob store.
package sql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	storageAdapter "github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// Migration modes accepted by Options.MigrationMode.
const (
	MigrationModeAuto    = "auto"
	MigrationModeMigrate = "migrate"
	MigrationModeNone    = "none"
)

const (
	recordPrefix        = "records"
	requestConfigPrefix = "request_configs"
	jsonContentType     = "application/json"
)

// Migrator applies versioned schema migrations to a connection.
type Migrator interface {
	Up(ctx context.Context, conn database.DBConnection) error
}

// Options configures SQLStorage.
type Options struct {
	// MigrationMode selects what Setup does: "auto" runs gorm AutoMigrate,
	// "migrate" runs Migrator, "none" leaves the schema alone.
	MigrationMode string
	// Migrator is required when MigrationMode is "migrate".
	Migrator Migrator
}

// SQLStorage implements repository.Storage.
type SQLStorage struct {
	conn  database.DBConnection
	blobs storageAdapter.StorageConnection
	opts  Options
}

// NewSQLStorage creates a SQLStorage. Close closes both connections.
func NewSQLStorage(conn database.DBConnection, blobs storageAdapter.StorageConnection, opts Options) (*SQLStorage, error) {
	if conn == nil {
		return nil, exception.NewConfigurationError("SQLStorage", "database connection must not be nil")
	}
	if blobs == nil {
		return nil, exception.NewConfigurationError("SQLStorage", "blob store must not be nil")
	}
	switch opts.MigrationMode {
	case "":
		opts.MigrationMode = MigrationModeAuto
	case MigrationModeAuto, MigrationModeNone:
	case MigrationModeMigrate:
		if opts.Migrator == nil {
			return nil, exception.NewConfigurationError("SQLStorage", "migration mode 'migrate' requires a migrator")
		}
	default:
		return nil, exception.NewConfigurationError("SQLStorage", "unknown migration mode '%s'", opts.MigrationMode)
	}
	return &SQLStorage{conn: conn, blobs: blobs, opts: opts}, nil
}

var _ repository.Storage = (*SQLStorage)(nil)

// Setup brings the schema up to date according to the migration mode.
func (s *SQLStorage) Setup(ctx context.Context) error {
	const op = "SQLStorage.Setup"

	switch s.opts.MigrationMode {
	case MigrationModeAuto:
		if err := s.conn.DB(ctx).AutoMigrate(Entities()...); err != nil {
			return exception.NewStorageError(op, "failed to auto-migrate metadata tables", err)
		}
	case MigrationModeMigrate:
		if err := s.opts.Migrator.Up(ctx, s.conn); err != nil {
			return exception.NewStorageError(op, "failed to apply migrations", err)
		}
	default:
		logger.Debugf("SQLStorage: migration mode '%s', schema left untouched.", s.opts.MigrationMode)
		return nil
	}
	logger.Infof("SQLStorage: schema ready on connection '%s' (%s).", s.conn.Name(), s.opts.MigrationMode)
	return nil
}

// Close closes the database connection and the blob store.
func (s *SQLStorage) Close() error {
	var result *multierror.Error
	if err := s.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database connection '%s': %w", s.conn.Name(), err))
	}
	if err := s.blobs.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close blob store '%s': %w", s.blobs.Name(), err))
	}
	return result.ErrorOrNil()
}

// writeError wraps a failed write. A missing table usually means Setup never ran.
func (s *SQLStorage) writeError(op, message string, err error) error {
	if s.conn.IsTableNotExistError(err) {
		message += " (metadata tables missing; check storage.migration_mode)"
	}
	return exception.NewStorageError(op, message, err)
}

// readError maps a failed read to notFound when nothing matched.
func (s *SQLStorage) readError(op, message string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || s.conn.IsTableNotExistError(err) {
		return exception.NewBatchError(op, message, notFound, false)
	}
	return exception.NewStorageError(op, message, err)
}

// --- Request configs ---

// SaveRequestConfig uploads config as JSON and returns its object name.
func (s *SQLStorage) SaveRequestConfig(ctx context.Context, refKey string, config *model.RequestConfig) (string, error) {
	const op = "SQLStorage.SaveRequestConfig"
	data, err := config.Marshal()
	if err != nil {
		return "", exception.NewStorageError(op, "failed to serialize request config", err)
	}
	ref := fmt.Sprintf("%s/%s.json", requestConfigPrefix, refKey)
	if err := s.blobs.Upload(ctx, ref, bytes.NewReader(data), jsonContentType); err != nil {
		return "", exception.NewStorageError(op, fmt.Sprintf("failed to upload request config %s", ref), err)
	}
	return ref, nil
}

// GetRequestConfig downloads and decodes the config stored under ref.
func (s *SQLStorage) GetRequestConfig(ctx context.Context, ref string) (*model.RequestConfig, error) {
	const op = "SQLStorage.GetRequestConfig"
	data, err := storageAdapter.ReadAll(ctx, s.blobs, ref)
	if err != nil {
		if errors.Is(err, storageAdapter.ErrObjectNotFound) {
			return nil, exception.NewBatchError(op, fmt.Sprintf("request config %s not found", ref), repository.ErrRequestConfigNotFound, false)
		}
		return nil, exception.NewStorageError(op, fmt.Sprintf("failed to download request config %s", ref), err)
	}
	rc, err := model.UnmarshalRequestConfig(data)
	if err != nil {
		return nil, exception.NewStorageError(op, "failed to decode request config", err)
	}
	return rc, nil
}

// --- Record payloads ---

// SaveRecordData uploads one payload. The reference is the object name
// "records/<masterJobID>/<jobID>/<recordID>.json".
func (s *SQLStorage) SaveRecordData(ctx context.Context, recordID, masterJobID, jobID string, payload []byte) (string, error) {
	const op = "SQLStorage.SaveRecordData"
	ref := fmt.Sprintf("%s/%s/%s/%s.json", recordPrefix, masterJobID, jobID, recordID)
	if err := s.blobs.Upload(ctx, ref, bytes.NewReader(payload), jsonContentType); err != nil {
		return "", exception.NewStorageError(op, fmt.Sprintf("failed to upload record data %s", ref), err)
	}
	return ref, nil
}

// GetRecordData downloads the payload stored under ref.
func (s *SQLStorage) GetRecordData(ctx context.Context, ref string) ([]byte, error) {
	const op = "SQLStorage.GetRecordData"
	data, err := storageAdapter.ReadAll(ctx, s.blobs, ref)
	if err != nil {
		if errors.Is(err, storageAdapter.ErrObjectNotFound) {
			return nil, exception.NewBatchError(op, fmt.Sprintf("record data %s not found", ref), repository.ErrRecordNotFound, false)
		}
		return nil, exception.NewStorageError(op, fmt.Sprintf("failed to download record data %s", ref), err)
	}
	return data, nil
}

// --- MasterJob implementation ---

func (s *SQLStorage) LogMasterJobStart(ctx context.Context, job *model.MasterJob) error {
	const op = "SQLStorage.LogMasterJobStart"
	if err := s.conn.DB(ctx).Create(fromDomainMasterJob(job)).Error; err != nil {
		return s.writeError(op, fmt.Sprintf("failed to save MasterJob (ID: %s)", job.ID), err)
	}
	return nil
}

func (s *SQLStorage) LogMasterJobEnd(ctx context.Context, job *model.MasterJob) error {
	const op = "SQLStorage.LogMasterJobEnd"
	entity := fromDomainMasterJob(job)
	res := s.conn.DB(ctx).Model(&MasterJobEntity{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":          entity.Status,
		"target_count":    entity.TargetCount,
		"completed_count": entity.CompletedCount,
		"filtered_count":  entity.FilteredCount,
		"duplicate_count": entity.DuplicateCount,
		"failed_count":    entity.FailedCount,
		"start_time":      entity.StartTime,
		"end_time":        entity.EndTime,
		"last_updated":    entity.LastUpdated,
		"error_message":   entity.ErrorMessage,
	})
	return s.checkUpdate(op, "MasterJob", job.ID, res, repository.ErrMasterJobNotFound)
}

func (s *SQLStorage) UpdateMasterJobStatus(ctx context.Context, masterJobID string, status model.JobStatus) error {
	const op = "SQLStorage.UpdateMasterJobStatus"
	res := s.conn.DB(ctx).Model(&MasterJobEntity{}).Where("id = ?", masterJobID).Updates(map[string]interface{}{
		"status":       status,
		"last_updated": time.Now(),
	})
	return s.checkUpdate(op, "MasterJob", masterJobID, res, repository.ErrMasterJobNotFound)
}

// checkUpdate turns a failed or zero-row update into an error.
func (s *SQLStorage) checkUpdate(op, entity, id string, res *gorm.DB, notFound error) error {
	if res.Error != nil {
		return s.writeError(op, fmt.Sprintf("failed to update %s (ID: %s)", entity, id), res.Error)
	}
	if res.RowsAffected == 0 {
		return exception.NewBatchError(op, fmt.Sprintf("%s (ID: %s) not found for update", entity, id), notFound, false)
	}
	return nil
}

func (s *SQLStorage) GetMasterJob(ctx context.Context, masterJobID string) (*model.MasterJob, error) {
	const op = "SQLStorage.GetMasterJob"
	var entity MasterJobEntity
	if err := s.conn.DB(ctx).Where("id = ?", masterJobID).Take(&entity).Error; err != nil {
		return nil, s.readError(op, fmt.Sprintf("failed to find MasterJob (ID: %s)", masterJobID), err, repository.ErrMasterJobNotFound)
	}
	return toDomainMasterJob(&entity), nil
}

// ListMasterJobs returns the master jobs of projectID, newest first.
func (s *SQLStorage) ListMasterJobs(ctx context.Context, projectID string, statuses ...model.JobStatus) ([]*model.MasterJob, error) {
	const op = "SQLStorage.ListMasterJobs"
	q := s.conn.DB(ctx).Where("project_id = ?", projectID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var entities []MasterJobEntity
	if err := q.Order("create_time DESC").Order("id DESC").Find(&entities).Error; err != nil {
		if s.conn.IsTableNotExistError(err) {
			return nil, nil
		}
		return nil, exception.NewStorageError(op, fmt.Sprintf("failed to list MasterJobs of project %s", projectID), err)
	}
	result := make([]*model.MasterJob, 0, len(entities))
	for i := range entities {
		result = append(result, toDomainMasterJob(&entities[i]))
	}
	return result, nil
}

// --- ExecutionJob implementation ---

func (s *SQLStorage) LogExecutionJobStart(ctx context.Context, job *model.ExecutionJob) error {
	const op = "SQLStorage.LogExecutionJobStart"
	if err := s.conn.DB(ctx).Create(fromDomainExecutionJob(job)).Error; err != nil {
		return s.writeError(op, fmt.Sprintf("failed to save ExecutionJob (ID: %s)", job.ID), err)
	}
	return nil
}

func (s *SQLStorage) LogExecutionJobEnd(ctx context.Context, job *model.ExecutionJob) error {
	const op = "SQLStorage.LogExecutionJobEnd"
	entity := fromDomainExecutionJob(job)
	res := s.conn.DB(ctx).Model(&ExecutionJobEntity{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":          entity.Status,
		"completed_count": entity.CompletedCount,
		"filtered_count":  entity.FilteredCount,
		"duplicate_count": entity.DuplicateCount,
		"failed_count":    entity.FailedCount,
		"end_time":        entity.EndTime,
		"error_message":   entity.ErrorMessage,
	})
	return s.checkUpdate(op, "ExecutionJob", job.ID, res, repository.ErrExecutionJobNotFound)
}

func (s *SQLStorage) GetExecutionJob(ctx context.Context, jobID string) (*model.ExecutionJob, error) {
	const op = "SQLStorage.GetExecutionJob"
	var entity ExecutionJobEntity
	if err := s.conn.DB(ctx).Where("id = ?", jobID).Take(&entity).Error; err != nil {
		return nil, s.readError(op, fmt.Sprintf("failed to find ExecutionJob (ID: %s)", jobID), err, repository.ErrExecutionJobNotFound)
	}
	return toDomainExecutionJob(&entity), nil
}

// ListExecutionJobs returns the execution jobs of a master job in creation order.
func (s *SQLStorage) ListExecutionJobs(ctx context.Context, masterJobID string) ([]*model.ExecutionJob, error) {
	return s.listExecutionJobs(ctx, "SQLStorage.ListExecutionJobs", s.conn.DB(ctx).Where("master_job_id = ?", masterJobID))
}

// ListExecutionJobsByMasterIDAndConfigHash returns the execution jobs of a master job for one input hash.
func (s *SQLStorage) ListExecutionJobsByMasterIDAndConfigHash(ctx context.Context, masterJobID, configHash string, statuses ...model.RecordStatus) ([]*model.ExecutionJob, error) {
	q := s.conn.DB(ctx).Where("master_job_id = ? AND run_config_hash = ?", masterJobID, configHash)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	return s.listExecutionJobs(ctx, "SQLStorage.ListExecutionJobsByMasterIDAndConfigHash", q)
}

func (s *SQLStorage) listExecutionJobs(ctx context.Context, op string, q *gorm.DB) ([]*model.ExecutionJob, error) {
	var entities []ExecutionJobEntity
	if err := q.Order("create_time ASC").Order("id ASC").Find(&entities).Error; err != nil {
		if s.conn.IsTableNotExistError(err) {
			return nil, nil
		}
		return nil, exception.NewStorageError(op, "failed to list ExecutionJobs", err)
	}
	result := make([]*model.ExecutionJob, 0, len(entities))
	for i := range entities {
		result = append(result, toDomainExecutionJob(&entities[i]))
	}
	return result, nil
}

// --- Record metadata implementation ---

func (s *SQLStorage) LogRecordMetadata(ctx context.Context, record *model.Record) error {
	const op = "SQLStorage.LogRecordMetadata"
	if err := s.conn.DB(ctx).Create(fromDomainRecord(record)).Error; err != nil {
		return s.writeError(op, fmt.Sprintf("failed to save Record (ID: %s)", record.ID), err)
	}
	return nil
}

func (s *SQLStorage) GetRecordMetadata(ctx context.Context, recordID string) (*model.Record, error) {
	const op = "SQLStorage.GetRecordMetadata"
	var entity RecordEntity
	if err := s.conn.DB(ctx).Where("id = ?", recordID).Take(&entity).Error; err != nil {
		return nil, s.readError(op, fmt.Sprintf("failed to find Record (ID: %s)", recordID), err, repository.ErrRecordNotFound)
	}
	return toDomainRecord(&entity), nil
}

// ListRecordMetadata returns the records of a master job, optionally of one
// execution job. Records of one attempt come back in output order.
func (s *SQLStorage) ListRecordMetadata(ctx context.Context, masterJobID, jobID string) ([]*model.Record, error) {
	const op = "SQLStorage.ListRecordMetadata"
	q := s.conn.DB(ctx).Where("master_job_id = ?", masterJobID)
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}
	var entities []RecordEntity
	if err := q.Order("create_time ASC").Order("job_id ASC").Order("item_index ASC").Find(&entities).Error; err != nil {
		if s.conn.IsTableNotExistError(err) {
			return nil, nil
		}
		return nil, exception.NewStorageError(op, fmt.Sprintf("failed to list Records of MasterJob %s", masterJobID), err)
	}
	result := make([]*model.Record, 0, len(entities))
	for i := range entities {
		result = append(result, toDomainRecord(&entities[i]))
	}
	return result, nil
}
