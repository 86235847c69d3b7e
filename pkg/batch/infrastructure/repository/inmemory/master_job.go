package inmemory

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

// LogMasterJobStart persists a new master job.
// It returns an error if a master job with the same ID already exists.
func (s *InMemoryStorage) LogMasterJobStart(ctx context.Context, job *model.MasterJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.masterJobs[job.ID]; exists {
		return fmt.Errorf("MasterJob with ID %s already exists", job.ID)
	}
	clone := *job
	s.masterJobs[job.ID] = &clone
	s.masterOrder = append(s.masterOrder, job.ID)
	return nil
}

// LogMasterJobEnd replaces the stored master job with its final state.
func (s *InMemoryStorage) LogMasterJobEnd(ctx context.Context, job *model.MasterJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.masterJobs[job.ID]; !exists {
		return fmt.Errorf("MasterJob with ID %s not found for update: %w", job.ID, repository.ErrMasterJobNotFound)
	}
	clone := *job
	s.masterJobs[job.ID] = &clone
	return nil
}

// UpdateMasterJobStatus changes the status of a stored master job.
func (s *InMemoryStorage) UpdateMasterJobStatus(ctx context.Context, masterJobID string, status model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.masterJobs[masterJobID]
	if !exists {
		return fmt.Errorf("MasterJob with ID %s not found for update: %w", masterJobID, repository.ErrMasterJobNotFound)
	}
	job.Status = status
	job.LastUpdated = time.Now()
	return nil
}

// GetMasterJob finds a master job by ID.
func (s *InMemoryStorage) GetMasterJob(ctx context.Context, masterJobID string) (*model.MasterJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.masterJobs[masterJobID]
	if !ok {
		return nil, repository.ErrMasterJobNotFound
	}
	clone := *job
	return &clone, nil
}

// ListMasterJobs returns the master jobs of projectID, newest first.
func (s *InMemoryStorage) ListMasterJobs(ctx context.Context, projectID string, statuses ...model.JobStatus) ([]*model.MasterJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.MasterJob
	for i := len(s.masterOrder) - 1; i >= 0; i-- {
		job := s.masterJobs[s.masterOrder[i]]
		if job.ProjectID != projectID || !matchJobStatus(job.Status, statuses) {
			continue
		}
		clone := *job
		result = append(result, &clone)
	}
	return result, nil
}

func matchJobStatus(status model.JobStatus, statuses []model.JobStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
