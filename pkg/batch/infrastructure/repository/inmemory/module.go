package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

// Module provides InMemoryStorage as repository.Storage.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryStorage,
			fx.As(new(repository.Storage)),
		),
	),
)
