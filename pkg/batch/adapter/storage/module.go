package storage

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"
)

type closeParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Providers []StorageProvider `group:"storage_providers"`
}

func registerCloseHook(p closeParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			var result *multierror.Error
			for _, provider := range p.Providers {
				if err := provider.CloseAll(); err != nil {
					result = multierror.Append(result, err)
				}
			}
			return result.ErrorOrNil()
		},
	})
}

// Module provides the blob store resolver. Stores come from the local and gcs modules.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConnectionResolver,
		fx.As(new(StorageConnectionResolver)),
	)),
	fx.Invoke(registerCloseHook),
)
