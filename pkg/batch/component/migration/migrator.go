// Package migration applies the versioned schema of the SQL storage with
// golang-migrate. The migration scripts are embedded per dialect.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// DefaultMigrationsTable is the table golang-migrate keeps the schema version in.
const DefaultMigrationsTable = "datagen_schema_migrations"

const module = "migration"

//go:embed sql
var embeddedMigrations embed.FS

// Migrator runs the embedded migrations against a DBConnection.
type Migrator struct {
	fs    fs.FS
	root  string
	table string
}

// NewMigrator creates a Migrator over the embedded scripts.
func NewMigrator() *Migrator {
	return &Migrator{fs: embeddedMigrations, root: "sql", table: DefaultMigrationsTable}
}

// NewMigratorFS creates a Migrator over fsys. Scripts are read from
// <root>/<dialect>, where dialect is the connection's type.
func NewMigratorFS(fsys fs.FS, root, table string) *Migrator {
	if table == "" {
		table = DefaultMigrationsTable
	}
	return &Migrator{fs: fsys, root: root, table: table}
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up(ctx context.Context, conn database.DBConnection) error {
	return m.run(ctx, conn, "up", func(mi *migrate.Migrate) error { return mi.Up() })
}

// Down reverts every applied migration.
func (m *Migrator) Down(ctx context.Context, conn database.DBConnection) error {
	return m.run(ctx, conn, "down", func(mi *migrate.Migrate) error { return mi.Down() })
}

// Version returns the applied schema version. ok is false when no migration
// has been applied yet.
func (m *Migrator) Version(ctx context.Context, conn database.DBConnection) (version uint, dirty bool, ok bool, err error) {
	err = m.with(ctx, conn, func(mi *migrate.Migrate) error {
		v, d, verr := mi.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return verr
		}
		version, dirty, ok = v, d, true
		return nil
	})
	return version, dirty, ok, err
}

func (m *Migrator) run(ctx context.Context, conn database.DBConnection, command string, fn func(*migrate.Migrate) error) error {
	logger.Infof("Executing migration '%s' on '%s' (dialect: %s, table: %s).", command, conn.Name(), conn.Type(), m.table)
	err := m.with(ctx, conn, func(mi *migrate.Migrate) error {
		if err := fn(mi); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			if v, dirty, verr := mi.Version(); verr == nil {
				logger.Errorf("Migration '%s' failed at version %d (dirty=%t).", command, v, dirty)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return exception.NewBatchErrorf(module, "migration '%s' failed for '%s'", command, conn.Name(), err)
	}
	logger.Infof("Migration '%s' on '%s' completed successfully.", command, conn.Name())
	return nil
}

// with builds a migrate instance around the connection's pool and releases
// it afterwards without closing the pool itself.
func (m *Migrator) with(ctx context.Context, conn database.DBConnection, fn func(*migrate.Migrate) error) error {
	dialect := conn.Type()
	sqlDB, err := conn.DB(ctx).DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	src, err := iofs.New(m.fs, path.Join(m.root, dialect))
	if err != nil {
		return fmt.Errorf("failed to open migrations for dialect %s: %w", dialect, err)
	}
	defer closeSource(src)

	drv, release, err := m.databaseDriver(ctx, dialect, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	defer release()

	mi, err := migrate.NewWithInstance("iofs", src, dialect, drv)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return fn(mi)
}

// databaseDriver returns the golang-migrate driver for dialect. Drivers that
// own their *sql.DB would close it on Close, so postgres and mysql get a
// dedicated *sql.Conn and sqlite is never closed.
func (m *Migrator) databaseDriver(ctx context.Context, dialect string, sqlDB *sql.DB) (migratedb.Driver, func(), error) {
	switch dialect {
	case "postgres", "mysql":
		c, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		var drv migratedb.Driver
		if dialect == "postgres" {
			drv, err = postgres.WithConnection(ctx, c, &postgres.Config{MigrationsTable: m.table})
		} else {
			drv, err = mysql.WithConnection(ctx, c, &mysql.Config{MigrationsTable: m.table})
		}
		if err != nil {
			_ = c.Close()
			return nil, nil, err
		}
		return drv, func() {
			if err := drv.Close(); err != nil {
				logger.Warnf("Failed to release migration connection: %v", err)
			}
		}, nil
	case "sqlite":
		drv, err := sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: m.table})
		if err != nil {
			return nil, nil, err
		}
		return drv, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type for migration: %s", dialect)
	}
}

func closeSource(src source.Driver) {
	if err := src.Close(); err != nil {
		logger.Warnf("Failed to close migration source: %v", err)
	}
}
