package factory

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	config "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/core/domain/repository"
	"github.com/tigerroll/datagen/pkg/batch/core/metrics"
)

// DataFactoryParams holds the dependencies of a DataFactory built by fx.
// Listeners and hooks are collected from value groups, so the listener modules
// decide which of them are active.
type DataFactoryParams struct {
	fx.In
	Work            port.WorkFunc
	Config          *config.Config
	Storage         repository.Storage    `optional:"true"`
	Tracer          metrics.Tracer        `optional:"true"`
	Progress        port.ProgressReporter `optional:"true"`
	CompletionHooks []port.CompletionHook `group:"completionHooks"`
	ErrorHooks      []port.ErrorHook      `group:"errorHooks"`
	JobListeners    []port.JobListener    `group:"jobListeners"`
	TaskListeners   []port.TaskListener   `group:"taskListeners"`
}

// NewDataFactoryProvider builds a DataFactory from the configuration and the
// components available in the fx graph.
func NewDataFactoryProvider(p DataFactoryParams) (*DataFactory, error) {
	opts := []Option{
		FromConfig(p.Config),
		WithCompletionHooks(p.CompletionHooks...),
		WithErrorHooks(p.ErrorHooks...),
		func(o *options) {
			o.jobListeners = append(o.jobListeners, p.JobListeners...)
			o.taskListeners = append(o.taskListeners, p.TaskListeners...)
		},
	}
	if p.Storage != nil {
		opts = append(opts, WithStorage(p.Storage))
	}
	if p.Progress != nil {
		opts = append(opts, WithProgress(p.Progress))
	}
	f, err := New(p.Work, opts...)
	if err != nil {
		return nil, err
	}
	// Task spans only; the tracing listeners arrive through the groups.
	if p.Tracer != nil {
		f.opts.tracer = p.Tracer
	}
	return f, nil
}

// Module provides *DataFactory. The application supplies the port.WorkFunc.
var Module = fx.Options(
	fx.Provide(NewDataFactoryProvider),
)
