package work

import (
	"go.uber.org/fx"

	"github.com/tigerroll/datagen/pkg/batch/component/hook"
	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
)

// ErrorCountKey is the shared-state key counting failed attempts.
const ErrorCountKey = "errors"

// Module provides QuestionWork as the port.WorkFunc, a dedup hook keyed on
// the question text and an error-count hook.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewQuestionWork, fx.As(new(port.WorkFunc)))),
	fx.Provide(fx.Annotate(
		func() port.CompletionHook { return hook.NewDedupHook(QuestionKey) },
		fx.ResultTags(`group:"completionHooks"`),
	)),
	fx.Provide(fx.Annotate(
		func() port.ErrorHook { return hook.NewErrorCountHook(ErrorCountKey) },
		fx.ResultTags(`group:"errorHooks"`),
	)),
)
