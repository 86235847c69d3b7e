package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/datagen/pkg/batch/adapter/storage"
)

// Module provides the gcs StorageProvider into the storage_providers group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGCSProvider,
		fx.ResultTags(storageAdapter.StorageProviderGroup),
	)),
)
