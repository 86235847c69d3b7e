// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/datagen/pkg/batch/core/config"
)

// ProviderType is the database type handled by this package.
const ProviderType = "sqlite"

// defaultParams make concurrent writers wait for the file lock instead of failing.
const defaultParams = "_busy_timeout=5000&_journal_mode=WAL"

func init() {
	gormadapter.RegisterDialector(ProviderType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterErrorClassifier(ProviderType, gormadapter.ErrorClassifier{
		IsTableNotExist: IsTableNotExistError,
		IsDuplicateKey:  IsDuplicateKeyError,
	})
}

// ConnectionString returns the DSN for c. File databases get a busy timeout
// and WAL journaling unless the path already carries parameters.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := c.Database
	if strings.Contains(dsn, "?") || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn
	}
	return dsn + "?" + defaultParams
}

// IsTableNotExistError reports "no such table" errors.
func IsTableNotExistError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrError && strings.Contains(se.Error(), "no such table")
	}
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// IsDuplicateKeyError reports primary key and unique constraint violations.
func IsDuplicateKeyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new database.DBProvider for SQLite.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, ProviderType)}
}
