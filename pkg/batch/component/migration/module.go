package migration

import (
	"go.uber.org/fx"

	sqlstore "github.com/tigerroll/datagen/pkg/batch/infrastructure/repository/sql"
)

// Module provides the embedded Migrator to the SQL storage, which runs it
// when storage.migration_mode is "migrate".
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewMigrator,
		fx.As(new(sqlstore.Migrator)),
	)),
)
