package export

import (
	"context"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// ExportJobListener exports a master job once it finished with at least one
// completed record. Export failures are logged and never change the job.
type ExportJobListener struct {
	exporter *ParquetExporter
}

// NewExportJobListener creates the listener.
func NewExportJobListener(exporter *ParquetExporter) *ExportJobListener {
	return &ExportJobListener{exporter: exporter}
}

// BeforeJob does nothing.
func (l *ExportJobListener) BeforeJob(ctx context.Context, job *model.MasterJob) {}

// AfterJob runs the export.
func (l *ExportJobListener) AfterJob(ctx context.Context, job *model.MasterJob, counters model.Counters) {
	if counters.Completed == 0 {
		return
	}
	if job.Status != model.JobStatusCompleted && job.Status != model.JobStatusCompletedWithErrors {
		return
	}
	res, err := l.exporter.Export(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		logger.Errorf("Export of master job %s failed: %v", job.ID, err)
		return
	}
	logger.Infof("Export of master job %s finished: %d rows in %d files.", job.ID, res.Rows, len(res.Objects))
}

var _ port.JobListener = (*ExportJobListener)(nil)
