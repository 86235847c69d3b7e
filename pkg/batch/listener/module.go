package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/datagen/pkg/batch/listener/logging"
	"github.com/tigerroll/datagen/pkg/batch/listener/metrics"
	"github.com/tigerroll/datagen/pkg/batch/listener/tracing"
)

// Module aggregates all listener modules.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
)
