package export

import (
	"go.uber.org/fx"

	"github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
)

// NewParquetExporterProvider builds the exporter from the export section.
func NewParquetExporterProvider(cfg *config.Config, store repository.Storage, resolver storage.StorageConnectionResolver) (*ParquetExporter, error) {
	return NewParquetExporter(cfg.Datagen.Export, store, resolver)
}

// Module provides *ParquetExporter and contributes an ExportJobListener to
// the "jobListeners" group, so every finished master job is exported.
var Module = fx.Options(
	fx.Provide(NewParquetExporterProvider),
	fx.Provide(fx.Annotate(
		func(e *ParquetExporter) port.JobListener { return NewExportJobListener(e) },
		fx.ResultTags(`group:"jobListeners"`),
	)),
)
