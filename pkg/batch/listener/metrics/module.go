package metrics

import (
	"context"

	"go.uber.org/fx"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// NewAsyncMetricRecorderWrapper is used with fx.Decorate. It wraps the provided
// recorder in an AsyncMetricRecorder when observability.metrics_async_buffer_size
// is positive and closes it on shutdown.
func NewAsyncMetricRecorderWrapper(lc fx.Lifecycle, cfg *config.Config, syncRecorder metrics.MetricRecorder) metrics.MetricRecorder {
	bufferSize := cfg.Datagen.Observability.MetricsAsyncBufferSize
	if bufferSize <= 0 {
		return syncRecorder
	}
	asyncRecorder := NewAsyncMetricRecorder(bufferSize, syncRecorder)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			asyncRecorder.Close()
			return nil
		},
	})
	logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return asyncRecorder
}

// NewJobListenerProvider provides the metrics job listener.
func NewJobListenerProvider(recorder metrics.MetricRecorder) port.JobListener {
	return NewMetricsJobListener(recorder)
}

// NewTaskListenerProvider provides the metrics task listener.
func NewTaskListenerProvider(recorder metrics.MetricRecorder) port.TaskListener {
	return NewMetricsTaskListener(recorder)
}

// Module decorates the MetricRecorder and contributes the metrics listeners
// to the "jobListeners" and "taskListeners" groups.
var Module = fx.Options(
	fx.Decorate(NewAsyncMetricRecorderWrapper),
	fx.Provide(fx.Annotate(NewJobListenerProvider, fx.ResultTags(`group:"jobListeners"`))),
	fx.Provide(fx.Annotate(NewTaskListenerProvider, fx.ResultTags(`group:"taskListeners"`))),
)
