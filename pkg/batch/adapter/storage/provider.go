package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/tigerroll/datagen/pkg/batch/adapter/storage/config"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// ConnectionFactory opens a store from its decoded configuration.
type ConnectionFactory func(cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

// BaseProvider caches the named connections of one store type.
type BaseProvider struct {
	configs     map[string]interface{}
	storeType   string
	factory     ConnectionFactory
	connections map[string]StorageConnection
	mu          sync.RWMutex
}

// NewBaseProvider creates a provider for storeType reading the named store
// settings under `datagen.blob`.
func NewBaseProvider(cfg *config.Config, storeType string, factory ConnectionFactory) *BaseProvider {
	return &BaseProvider{
		configs:     cfg.Datagen.BlobConfigs,
		storeType:   storeType,
		factory:     factory,
		connections: make(map[string]StorageConnection),
	}
}

// Type returns the store type.
func (p *BaseProvider) Type() string {
	return p.storeType
}

// GetConnection retrieves a connection by name, creating it on first use.
func (p *BaseProvider) GetConnection(name string) (StorageConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring lock
	if conn, ok = p.connections[name]; ok {
		return conn, nil
	}

	var cfg storageConfig.StorageConfig
	if err := configbinder.BindNamed(p.configs, name, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	if cfg.Type != p.storeType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, p.storeType, cfg.Type)
	}

	conn, err := p.factory(cfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store '%s': %w", p.storeType, name, err)
	}
	p.connections[name] = conn
	logger.Debugf("Created new %s storage connection '%s'.", p.storeType, name)
	return conn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close %s storage connection '%s': %w", p.storeType, name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}
