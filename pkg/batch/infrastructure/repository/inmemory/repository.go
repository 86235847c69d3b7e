// Package inmemory provides an in-memory implementation of repository.Storage.
// It keeps every entity and payload in maps, which suits tests, dry runs and
// short-lived runs that need resume only within the same process.
package inmemory

import (
	"context"
	"sync"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

// InMemoryStorage is an in-memory implementation of repository.Storage.
// Entities are copied on the way in and on the way out, so callers never share
// state with the store.
type InMemoryStorage struct {
	mu sync.RWMutex

	requestConfigs map[string][]byte
	recordData     map[string][]byte

	masterJobs    map[string]*model.MasterJob
	masterOrder   []string
	executionJobs map[string]*model.ExecutionJob
	execOrder     []string
	records       map[string]*model.Record
	recordOrder   []string
}

// NewInMemoryStorage creates and initializes a new InMemoryStorage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		requestConfigs: make(map[string][]byte),
		recordData:     make(map[string][]byte),
		masterJobs:     make(map[string]*model.MasterJob),
		executionJobs:  make(map[string]*model.ExecutionJob),
		records:        make(map[string]*model.Record),
	}
}

// Setup is a no-op.
func (s *InMemoryStorage) Setup(ctx context.Context) error {
	return nil
}

// Close releases nothing; the in-memory store holds no external resources.
func (s *InMemoryStorage) Close() error {
	return nil
}

var _ repository.Storage = (*InMemoryStorage)(nil)
