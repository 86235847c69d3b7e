// Package postgres provides a GORM DBProvider implementation for PostgreSQL databases.
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/datagen/pkg/batch/core/config"
)

// ProviderType is the database type handled by this package.
const ProviderType = "postgres"

const (
	undefinedTable  = "42P01"
	uniqueViolation = "23505"
)

func init() {
	gormadapter.RegisterDialector(ProviderType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterErrorClassifier(ProviderType, gormadapter.ErrorClassifier{
		IsTableNotExist: func(err error) bool { return hasCode(err, undefinedTable) },
		IsDuplicateKey:  func(err error) bool { return hasCode(err, uniqueViolation) },
	})
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// ConnectionString generates the DSN for PostgreSQL connections.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new database.DBProvider for PostgreSQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, ProviderType)}
}
