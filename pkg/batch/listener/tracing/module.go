package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
)

// NewJobListenerProvider provides the tracing job listener.
func NewJobListenerProvider(tracer metrics.Tracer) port.JobListener {
	return NewTracingJobListener(tracer)
}

// NewTaskListenerProvider provides the tracing task listener.
func NewTaskListenerProvider(tracer metrics.Tracer) port.TaskListener {
	return NewTracingTaskListener(tracer)
}

// Module provides tracing listeners. The Tracer itself comes from the
// infrastructure layer (pkg/batch/infrastructure/metrics).
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewJobListenerProvider, fx.ResultTags(`group:"jobListeners"`))),
	fx.Provide(fx.Annotate(NewTaskListenerProvider, fx.ResultTags(`group:"taskListeners"`))),
)
