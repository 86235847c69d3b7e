package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// NewJobListenerProvider provides the logging job listener to the job listener group.
func NewJobListenerProvider() port.JobListener {
	return NewLoggingJobListener()
}

// NewTaskListenerProvider provides the logging task listener, masking the keys from
// the security configuration.
func NewTaskListenerProvider(cfg *config.Config) port.TaskListener {
	logger.Debugf("Logging task listener created (masked keys: %v).", cfg.Datagen.Security.MaskedParameterKeys)
	return NewLoggingTaskListener(cfg.Datagen.Security.MaskedParameterKeys)
}

// Module contributes the logging listeners to the "jobListeners" and "taskListeners" groups.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewJobListenerProvider, fx.ResultTags(`group:"jobListeners"`))),
	fx.Provide(fx.Annotate(NewTaskListenerProvider, fx.ResultTags(`group:"taskListeners"`))),
)
