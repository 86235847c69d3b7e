package repository

import (
	"context"
	"fmt"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// MasterJobStore persists master job metadata.
type MasterJobStore interface {
	// LogMasterJobStart persists a new master job.
	LogMasterJobStart(ctx context.Context, job *model.MasterJob) error

	// LogMasterJobEnd writes the terminal status, counters and end time of a master job.
	LogMasterJobEnd(ctx context.Context, job *model.MasterJob) error

	// UpdateMasterJobStatus changes only the status of a master job.
	UpdateMasterJobStatus(ctx context.Context, masterJobID string, status model.JobStatus) error

	// GetMasterJob finds a master job by ID.
	GetMasterJob(ctx context.Context, masterJobID string) (*model.MasterJob, error)

	// ListMasterJobs returns the master jobs of a project, newest first.
	// An empty status list matches every status.
	ListMasterJobs(ctx context.Context, projectID string, statuses ...model.JobStatus) ([]*model.MasterJob, error)
}

// ErrMasterJobNotFound is returned when a master job is not found.
var ErrMasterJobNotFound = fmt.Errorf("master job %w", exception.ErrNotFound)

func init() {
	exception.RegisterErrorType("ErrMasterJobNotFound", ErrMasterJobNotFound)
}
