package gorm

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

// ErrorClassifier recognizes driver-specific errors of one database type.
type ErrorClassifier struct {
	IsTableNotExist func(err error) bool
	IsDuplicateKey  func(err error) bool
}

var (
	dialectorRegistry  = make(map[string]DialectorFactory)
	classifierRegistry = make(map[string]ErrorClassifier)
	dialectorMutex     sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// RegisterErrorClassifier registers the error classifier for the given database type.
func RegisterErrorClassifier(dbType string, classifier ErrorClassifier) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	classifierRegistry[dbType] = classifier
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s (is its provider package imported?)", dbType)
	}
	return factory, nil
}

// getErrorClassifier returns the classifier of dbType, falling back to
// message matching for types that registered none.
func getErrorClassifier(dbType string) ErrorClassifier {
	dialectorMutex.RLock()
	c, ok := classifierRegistry[dbType]
	dialectorMutex.RUnlock()

	if c.IsTableNotExist == nil {
		c.IsTableNotExist = func(err error) bool {
			msg := strings.ToLower(err.Error())
			return strings.Contains(msg, "no such table") || strings.Contains(msg, "doesn't exist") ||
				(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
		}
	}
	if c.IsDuplicateKey == nil {
		c.IsDuplicateKey = func(err error) bool {
			return errors.Is(err, gorm.ErrDuplicatedKey)
		}
	}
	if !ok {
		logger.Debugf("No error classifier registered for database type '%s'; using message matching.", dbType)
	}
	return c
}

// BaseProvider provides common functionality for DBProvider implementations.
type BaseProvider struct {
	configs map[string]interface{}
	dbType  string
	// Map to hold connections managed by this provider (name -> DBConnection)
	connections map[string]database.DBConnection
	mu          sync.RWMutex
}

// NewBaseProvider creates a new BaseProvider reading the named connection
// settings under `datagen.database`.
func NewBaseProvider(cfg *config.Config, dbType string) *BaseProvider {
	return &BaseProvider{
		configs:     cfg.Datagen.AdaptorConfigs,
		dbType:      dbType,
		connections: make(map[string]database.DBConnection),
	}
}

// Type returns the database type.
func (p *BaseProvider) Type() string {
	return p.dbType
}

// GetConnection retrieves an existing connection or establishes a new one.
func (p *BaseProvider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()

	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double check (DCL)
	conn, ok = p.connections[name]
	if ok {
		return conn, nil
	}

	return p.createAndStoreConnection(name)
}

// createAndStoreConnection establishes a new connection and stores it in the map.
// The caller must hold p.mu.
func (p *BaseProvider) createAndStoreConnection(name string) (database.DBConnection, error) {
	var dbConfig dbconfig.DatabaseConfig
	if err := configbinder.BindNamed(p.configs, name, &dbConfig); err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	if dbConfig.Type != p.dbType {
		return nil, fmt.Errorf("provider type mismatch: expected '%s', got '%s' for connection '%s'", p.dbType, dbConfig.Type, name)
	}

	gormDB, err := Open(dbConfig)
	if err != nil {
		return nil, err
	}

	conn := NewGormDBAdapter(gormDB, dbConfig, name)
	p.connections[name] = conn
	logger.Infof("Established new DB connection: %s (%s)", name, p.dbType)

	return conn, nil
}

// ForceReconnect attempts to close and reopen a connection if it exists.
func (p *BaseProvider) ForceReconnect(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existingConn, ok := p.connections[name]; ok {
		if err := existingConn.Close(); err != nil {
			logger.Warnf("Failed to close existing connection '%s' before reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}

	conn, err := p.createAndStoreConnection(name)
	if err != nil {
		return nil, err
	}

	logger.Infof("Re-established DB connection: %s (%s)", name, p.dbType)
	return conn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			result = multierror.Append(result, fmt.Errorf("close '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

// Open establishes a gorm connection for dbConfig using the registered dialector
// and applies the pool settings.
func Open(dbConfig dbconfig.DatabaseConfig) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialector factory for %s: %w", dbConfig.Type, err)
	}
	dialector, err := dialectorFactory(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbConfig.Type, err)
	}

	db, err := gorm.Open(dialector, NewGormConfig(dbConfig.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if dbConfig.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.Pool.MaxOpenConns)
	}
	if dbConfig.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.Pool.MaxIdleConns)
	}
	if dbConfig.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return db, nil
}

// NewGormConfig returns the gorm settings shared by every connection.
// Storage writes are single statements, so gorm's implicit transaction is skipped.
func NewGormConfig(logLevel string) *gorm.Config {
	return &gorm.Config{
		Logger:                 NewGormLogger(logLevel),
		SkipDefaultTransaction: true,
	}
}
