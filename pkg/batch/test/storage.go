// Package test provides helpers shared by the engine's tests.
package test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

// ErrInjected is the error returned by a CountingStorage once its write budget is spent.
var ErrInjected = errors.New("injected storage failure")

// CountingStorage wraps a repository.Storage and counts every write.
// When FailAfter is positive, the write after the FailAfter-th fails with ErrInjected.
type CountingStorage struct {
	repository.Storage
	FailAfter int64

	writes atomic.Int64
	mu     sync.Mutex
	calls  []string
}

// NewCountingStorage wraps inner.
func NewCountingStorage(inner repository.Storage) *CountingStorage {
	return &CountingStorage{Storage: inner}
}

// Writes returns the number of write calls seen so far.
func (s *CountingStorage) Writes() int64 {
	return s.writes.Load()
}

// Calls returns the names of the write calls in the order they were made.
func (s *CountingStorage) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *CountingStorage) write(name string) error {
	n := s.writes.Add(1)
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
	if s.FailAfter > 0 && n > s.FailAfter {
		return ErrInjected
	}
	return nil
}

func (s *CountingStorage) SaveRequestConfig(ctx context.Context, refKey string, config *model.RequestConfig) (string, error) {
	if err := s.write("SaveRequestConfig"); err != nil {
		return "", err
	}
	return s.Storage.SaveRequestConfig(ctx, refKey, config)
}

func (s *CountingStorage) SaveRecordData(ctx context.Context, recordID, masterJobID, jobID string, payload []byte) (string, error) {
	if err := s.write("SaveRecordData"); err != nil {
		return "", err
	}
	return s.Storage.SaveRecordData(ctx, recordID, masterJobID, jobID, payload)
}

func (s *CountingStorage) LogMasterJobStart(ctx context.Context, job *model.MasterJob) error {
	if err := s.write("LogMasterJobStart"); err != nil {
		return err
	}
	return s.Storage.LogMasterJobStart(ctx, job)
}

func (s *CountingStorage) LogMasterJobEnd(ctx context.Context, job *model.MasterJob) error {
	if err := s.write("LogMasterJobEnd"); err != nil {
		return err
	}
	return s.Storage.LogMasterJobEnd(ctx, job)
}

func (s *CountingStorage) UpdateMasterJobStatus(ctx context.Context, masterJobID string, status model.JobStatus) error {
	if err := s.write("UpdateMasterJobStatus"); err != nil {
		return err
	}
	return s.Storage.UpdateMasterJobStatus(ctx, masterJobID, status)
}

func (s *CountingStorage) LogExecutionJobStart(ctx context.Context, job *model.ExecutionJob) error {
	if err := s.write("LogExecutionJobStart"); err != nil {
		return err
	}
	return s.Storage.LogExecutionJobStart(ctx, job)
}

func (s *CountingStorage) LogExecutionJobEnd(ctx context.Context, job *model.ExecutionJob) error {
	if err := s.write("LogExecutionJobEnd"); err != nil {
		return err
	}
	return s.Storage.LogExecutionJobEnd(ctx, job)
}

func (s *CountingStorage) LogRecordMetadata(ctx context.Context, record *model.Record) error {
	if err := s.write("LogRecordMetadata"); err != nil {
		return err
	}
	return s.Storage.LogRecordMetadata(ctx, record)
}

var _ repository.Storage = (*CountingStorage)(nil)
