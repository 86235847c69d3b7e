package inmemory

import (
	"context"

	"github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// SaveRequestConfig stores the serialized config under refKey, which doubles as the reference.
func (s *InMemoryStorage) SaveRequestConfig(ctx context.Context, refKey string, config *model.RequestConfig) (string, error) {
	data, err := config.Marshal()
	if err != nil {
		return "", exception.NewStorageError("InMemoryStorage.SaveRequestConfig", "failed to serialize request config", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestConfigs[refKey] = data
	return refKey, nil
}

// GetRequestConfig decodes the config stored under ref.
func (s *InMemoryStorage) GetRequestConfig(ctx context.Context, ref string) (*model.RequestConfig, error) {
	s.mu.RLock()
	data, ok := s.requestConfigs[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrRequestConfigNotFound
	}
	rc, err := model.UnmarshalRequestConfig(data)
	if err != nil {
		return nil, exception.NewStorageError("InMemoryStorage.GetRequestConfig", "failed to decode request config", err)
	}
	return rc, nil
}
