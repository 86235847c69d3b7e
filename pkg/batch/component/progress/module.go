package progress

import (
	"os"

	"go.uber.org/fx"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
)

// NewReporterProvider returns a bar on stderr when job.show_progress is set
// and a log reporter otherwise.
func NewReporterProvider(cfg *config.Config) port.ProgressReporter {
	if cfg.Datagen.Job.ShowProgress {
		return NewBarReporter(os.Stderr, 40)
	}
	return NewLogReporter(10)
}

// Module provides the port.ProgressReporter picked up by the factory.
var Module = fx.Options(
	fx.Provide(NewReporterProvider),
)
