package repository

import (
	"context"
	"fmt"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// ExecutionJobStore persists one entry per attempt of an input record.
type ExecutionJobStore interface {
	// LogExecutionJobStart persists a new execution job.
	LogExecutionJobStart(ctx context.Context, job *model.ExecutionJob) error

	// LogExecutionJobEnd writes the classification, counts and end time of an execution job.
	LogExecutionJobEnd(ctx context.Context, job *model.ExecutionJob) error

	// GetExecutionJob finds an execution job by ID.
	GetExecutionJob(ctx context.Context, jobID string) (*model.ExecutionJob, error)

	// ListExecutionJobs returns every execution job of a master job in creation order.
	ListExecutionJobs(ctx context.Context, masterJobID string) ([]*model.ExecutionJob, error)

	// ListExecutionJobsByMasterIDAndConfigHash returns the execution jobs of a
	// master job whose input hashes to configHash, in creation order.
	// An empty status list matches every status.
	ListExecutionJobsByMasterIDAndConfigHash(ctx context.Context, masterJobID, configHash string, statuses ...model.RecordStatus) ([]*model.ExecutionJob, error)
}

// ErrExecutionJobNotFound is returned when an execution job is not found.
var ErrExecutionJobNotFound = fmt.Errorf("execution job %w", exception.ErrNotFound)

func init() {
	exception.RegisterErrorType("ErrExecutionJobNotFound", ErrExecutionJobNotFound)
}
