// Package gorm implements the database connection abstractions on top of
// gorm. Database types plug in through RegisterDialector; see the sqlite,
// postgres and mysql subpackages.
package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db         *gorm.DB
	cfg        dbconfig.DatabaseConfig
	name       string
	classifier ErrorClassifier
}

// NewGormDBAdapter wraps an open gorm connection.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) *GormDBAdapter {
	return &GormDBAdapter{
		db:         db,
		cfg:        cfg,
		name:       name,
		classifier: getErrorClassifier(cfg.Type),
	}
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// DB returns a gorm session bound to ctx.
func (a *GormDBAdapter) DB(ctx context.Context) *gorm.DB {
	return a.db.WithContext(ctx)
}

// Ping checks the underlying pool.
func (a *GormDBAdapter) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB unavailable for '%s': %w", a.name, err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying pool.
func (a *GormDBAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	logger.Infof("Closing database connection '%s'...", a.name)
	return sqlDB.Close()
}

func (a *GormDBAdapter) Type() string {
	return a.cfg.Type
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// IsTableNotExistError reports a query against a missing table.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return err != nil && a.classifier.IsTableNotExist(err)
}

// IsDuplicateKeyError reports a unique or primary key violation.
func (a *GormDBAdapter) IsDuplicateKeyError(err error) bool {
	return err != nil && a.classifier.IsDuplicateKey(err)
}
