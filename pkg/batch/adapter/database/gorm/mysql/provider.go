// Package mysql provides a GORM DBProvider implementation for MySQL databases.
package mysql

import (
	"errors"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/datagen/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/datagen/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/datagen/pkg/batch/core/config"
)

// ProviderType is the database type handled by this package.
const ProviderType = "mysql"

const (
	erNoSuchTable = 1146
	erDupEntry    = 1062
)

func init() {
	gormadapter.RegisterDialector(ProviderType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterErrorClassifier(ProviderType, gormadapter.ErrorClassifier{
		IsTableNotExist: func(err error) bool { return hasNumber(err, erNoSuchTable) },
		IsDuplicateKey:  func(err error) bool { return hasNumber(err, erDupEntry) },
	})
}

func hasNumber(err error, number uint16) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}

// ConnectionString generates the DSN for MySQL connections. Timestamps are
// parsed into time.Time and stored in UTC.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	dsn.DBName = c.Database
	dsn.ParseTime = true
	// Versioned migrations are multi-statement scripts.
	dsn.MultiStatements = true
	return dsn.FormatDSN()
}

// MySQLDBProvider implements database.DBProvider for MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new database.DBProvider for MySQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, ProviderType)}
}
