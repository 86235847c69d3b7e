package metrics

import (
	"context"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
)

// Tracer abstracts span creation for master jobs and task attempts.
type Tracer interface {
	// StartJobSpan starts a span covering a whole master job.
	// The returned function ends the span.
	StartJobSpan(ctx context.Context, job *model.MasterJob) (context.Context, func())

	// StartTaskSpan starts a span covering one attempt of an input.
	StartTaskSpan(ctx context.Context, masterJobID, inputHash string) (context.Context, func())

	// RecordError records an error on the span in ctx.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event on the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
