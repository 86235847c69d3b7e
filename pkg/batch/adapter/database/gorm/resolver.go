package gorm

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// GormDBConnectionResolver is the GORM implementation of database.DBConnectionResolver.
type GormDBConnectionResolver struct {
	dbProviders map[string]database.DBProvider // keyed by database type
	configs     map[string]interface{}
}

// DBConnectionResolverParams holds the dependencies of NewGormDBConnectionResolver.
type DBConnectionResolverParams struct {
	fx.In
	DBProviders []database.DBProvider `group:"db_providers"`
	Cfg         *config.Config
}

// NewGormDBConnectionResolver creates a new GormDBConnectionResolver.
func NewGormDBConnectionResolver(p DBConnectionResolverParams) *GormDBConnectionResolver {
	providerMap := make(map[string]database.DBProvider)
	for _, provider := range p.DBProviders {
		providerMap[provider.Type()] = provider
	}

	return &GormDBConnectionResolver{
		dbProviders: providerMap,
		configs:     p.Cfg.Datagen.AdaptorConfigs,
	}
}

// ResolveDBConnection resolves the named connection. A connection that no
// longer answers a ping is re-established.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	var typed struct {
		Type string `yaml:"type"`
	}
	if err := configbinder.BindNamed(r.configs, name, &typed); err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: database configuration '%s': %w", name, err)
	}

	provider, ok := r.dbProviders[typed.Type]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: DBProvider for type '%s' not found for connection '%s'", typed.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: failed to get connection '%s': %w", name, err)
	}

	if pingErr := conn.Ping(ctx); pingErr != nil {
		logger.Warnf("DBConnectionResolver: connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		reconnected, reconnectErr := provider.ForceReconnect(name)
		if reconnectErr != nil {
			return nil, fmt.Errorf("DBConnectionResolver: failed to reconnect connection '%s': %w", name, reconnectErr)
		}
		logger.Infof("DBConnectionResolver: successfully reconnected connection '%s'.", name)
		return reconnected, nil
	}

	return conn, nil
}
