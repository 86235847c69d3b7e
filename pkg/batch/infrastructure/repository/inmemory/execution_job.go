package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

func cloneExecutionJob(job *model.ExecutionJob) *model.ExecutionJob {
	clone := *job
	clone.RunConfig = job.RunConfig.Copy()
	return &clone
}

// LogExecutionJobStart persists a new execution job.
func (s *InMemoryStorage) LogExecutionJobStart(ctx context.Context, job *model.ExecutionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executionJobs[job.ID]; exists {
		return fmt.Errorf("ExecutionJob with ID %s already exists", job.ID)
	}
	s.executionJobs[job.ID] = cloneExecutionJob(job)
	s.execOrder = append(s.execOrder, job.ID)
	return nil
}

// LogExecutionJobEnd replaces the stored execution job with its final state.
func (s *InMemoryStorage) LogExecutionJobEnd(ctx context.Context, job *model.ExecutionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executionJobs[job.ID]; !exists {
		return fmt.Errorf("ExecutionJob with ID %s not found for update: %w", job.ID, repository.ErrExecutionJobNotFound)
	}
	s.executionJobs[job.ID] = cloneExecutionJob(job)
	return nil
}

// GetExecutionJob finds an execution job by ID.
func (s *InMemoryStorage) GetExecutionJob(ctx context.Context, jobID string) (*model.ExecutionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.executionJobs[jobID]
	if !ok {
		return nil, repository.ErrExecutionJobNotFound
	}
	return cloneExecutionJob(job), nil
}

// ListExecutionJobs returns the execution jobs of a master job in creation order.
func (s *InMemoryStorage) ListExecutionJobs(ctx context.Context, masterJobID string) ([]*model.ExecutionJob, error) {
	return s.listExecutionJobs(masterJobID, func(*model.ExecutionJob) bool { return true }), nil
}

// ListExecutionJobsByMasterIDAndConfigHash returns the execution jobs of a master job for one input hash.
func (s *InMemoryStorage) ListExecutionJobsByMasterIDAndConfigHash(ctx context.Context, masterJobID, configHash string, statuses ...model.RecordStatus) ([]*model.ExecutionJob, error) {
	return s.listExecutionJobs(masterJobID, func(job *model.ExecutionJob) bool {
		if job.RunConfigHash != configHash {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, st := range statuses {
			if job.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (s *InMemoryStorage) listExecutionJobs(masterJobID string, keep func(*model.ExecutionJob) bool) []*model.ExecutionJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.ExecutionJob
	for _, id := range s.execOrder {
		job := s.executionJobs[id]
		if job.MasterJobID == masterJobID && keep(job) {
			result = append(result, cloneExecutionJob(job))
		}
	}
	return result
}
