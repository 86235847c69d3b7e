package sql

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/datagen/pkg/batch/adapter/database"
	storageAdapter "github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	repository "github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// StorageParams holds the dependencies of NewSQLStorageProvider.
type StorageParams struct {
	fx.In
	Lifecycle    fx.Lifecycle
	Cfg          *config.Config
	DBResolver   database.DBConnectionResolver
	BlobResolver storageAdapter.StorageConnectionResolver
	Migrator     Migrator `optional:"true"`
}

// NewSQLStorageProvider resolves the connections named by storage.metadata_db_ref
// and storage.blob_ref and runs Setup when the application starts. The
// connections are closed by their providers.
func NewSQLStorageProvider(p StorageParams) (repository.Storage, error) {
	ctx := context.Background()
	sc := p.Cfg.Datagen.Storage

	conn, err := p.DBResolver.ResolveDBConnection(ctx, sc.MetadataDBRef)
	if err != nil {
		return nil, exception.NewStorageError("SQLStorage", "failed to resolve metadata database", err)
	}
	blobs, err := p.BlobResolver.ResolveStorageConnection(ctx, sc.BlobRef)
	if err != nil {
		return nil, exception.NewStorageError("SQLStorage", "failed to resolve blob store", err)
	}

	s, err := NewSQLStorage(conn, blobs, Options{MigrationMode: sc.MigrationMode, Migrator: p.Migrator})
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{OnStart: s.Setup})
	return s, nil
}

// Module provides SQLStorage as repository.Storage.
var Module = fx.Options(
	fx.Provide(NewSQLStorageProvider),
)
