package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

// SaveRecordData stores a payload. The reference has the form
// "<masterJobID>/<jobID>/<recordID>".
func (s *InMemoryStorage) SaveRecordData(ctx context.Context, recordID, masterJobID, jobID string, payload []byte) (string, error) {
	ref := fmt.Sprintf("%s/%s/%s", masterJobID, jobID, recordID)
	data := make([]byte, len(payload))
	copy(data, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordData[ref] = data
	return ref, nil
}

// GetRecordData loads a payload by reference.
func (s *InMemoryStorage) GetRecordData(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.recordData[ref]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// LogRecordMetadata persists record metadata.
func (s *InMemoryStorage) LogRecordMetadata(ctx context.Context, record *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("Record with ID %s already exists", record.ID)
	}
	clone := *record
	s.records[record.ID] = &clone
	s.recordOrder = append(s.recordOrder, record.ID)
	return nil
}

// GetRecordMetadata finds a record by ID.
func (s *InMemoryStorage) GetRecordMetadata(ctx context.Context, recordID string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

// ListRecordMetadata returns the records of a master job, optionally of one execution job.
func (s *InMemoryStorage) ListRecordMetadata(ctx context.Context, masterJobID, jobID string) ([]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Record
	for _, id := range s.recordOrder {
		rec := s.records[id]
		if rec.MasterJobID != masterJobID || (jobID != "" && rec.JobID != jobID) {
			continue
		}
		clone := *rec
		result = append(result, &clone)
	}
	return result, nil
}
