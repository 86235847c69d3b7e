// Package database defines the connection abstractions used by the SQL
// storage. Concrete providers live in the gorm subpackages and register
// themselves per database type.
package database

import (
	"context"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
)

// DBConnection is one named, pooled database connection.
type DBConnection interface {
	// Name returns the configuration name of the connection.
	Name() string
	// Type returns the database type (e.g. "sqlite").
	Type() string
	// Close closes the underlying pool.
	Close() error

	// DB returns a gorm session bound to ctx.
	DB(ctx context.Context) *gorm.DB
	// Ping checks that the connection is alive.
	Ping(ctx context.Context) error
	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// IsDuplicateKeyError checks if the given error is a unique or primary key violation.
	IsDuplicateKeyError(err error) bool
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
}

// DBConnectionResolver resolves a named connection, re-establishing it when it went stale.
type DBConnectionResolver interface {
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider is responsible for providing database connections of one type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
	// ForceReconnect forces the closure and re-establishment of an existing connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is an Fx tag used to group all DBProvider implementations.
const DBProviderGroup = `group:"db_providers"`
