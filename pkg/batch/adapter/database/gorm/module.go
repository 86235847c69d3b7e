package gorm

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
)

type closeParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	DBProviders []database.DBProvider `group:"db_providers"`
}

// registerCloseHook closes every provider's connections when the app stops.
func registerCloseHook(p closeParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result *multierror.Error
			for _, provider := range p.DBProviders {
				if err := provider.CloseAll(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			return result.ErrorOrNil()
		},
	})
}

// Module provides the connection resolver. Concrete DB providers come from
// the sqlite, postgres and mysql modules.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
	)),
	fx.Invoke(registerCloseHook),
)
