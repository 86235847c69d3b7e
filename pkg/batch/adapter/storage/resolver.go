package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// ConnectionResolver selects the provider of a named blob store by its
// configured type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	configs   map[string]interface{}
}

// ResolverParams holds the dependencies of NewConnectionResolver.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *config.Config
}

// NewConnectionResolver creates a ConnectionResolver over the given providers.
func NewConnectionResolver(p ResolverParams) *ConnectionResolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &ConnectionResolver{providers: providers, configs: p.Cfg.Datagen.BlobConfigs}
}

// ResolveStorageConnection returns the blob store configured under name.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	var typed struct {
		Type string `yaml:"type"`
	}
	if err := configbinder.BindNamed(r.configs, name, &typed); err != nil {
		return nil, fmt.Errorf("blob store '%s': %w", name, err)
	}

	provider, ok := r.providers[typed.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", typed.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, typed.Type, err)
	}
	logger.Debugf("Resolved blob store '%s' (%s).", name, typed.Type)
	return conn, nil
}

var _ StorageConnectionResolver = (*ConnectionResolver)(nil)
