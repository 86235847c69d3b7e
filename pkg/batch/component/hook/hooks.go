// Package hook provides ready-made completion and error hooks.
package hook

import (
	"context"

	port "github.com/tigerroll/datagen/pkg/batch/core/application/port"
	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/core/state"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
	"github.com/tigerroll/datagen/pkg/batch/support/util/serialization"
)

// DedupKeyPrefix prefixes the shared-state keys of seen outputs.
const DedupKeyPrefix = "dedup:"

// KeyFunc derives the deduplication key of an attempt's output.
type KeyFunc func(output []interface{}) (string, error)

// HashKey keys an output by the hash of its canonical JSON.
func HashKey(output []interface{}) (string, error) {
	return serialization.Hash(output)
}

// NewDedupHook marks an output DUPLICATE when its key was already seen by
// this hook's shared state. A nil keyFunc means HashKey. An output whose key
// cannot be computed is left COMPLETED. Outputs replayed on resume are
// recorded as seen.
func NewDedupHook(keyFunc KeyFunc) port.CompletionHook {
	if keyFunc == nil {
		keyFunc = HashKey
	}
	return &dedupHook{keyFunc: keyFunc}
}

type dedupHook struct {
	keyFunc KeyFunc
}

func (h *dedupHook) OnRecordComplete(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus {
	key, err := h.keyFunc(output)
	if err != nil {
		logger.Warnf("Dedup hook: cannot key output, keeping it: %v", err)
		return model.RecordStatusCompleted
	}
	if !st.SetIfAbsent(DedupKeyPrefix+key, true) {
		return model.RecordStatusDuplicate
	}
	return model.RecordStatusCompleted
}

func (h *dedupHook) OnRecordReplay(ctx context.Context, output []interface{}, st *state.SharedState) {
	key, err := h.keyFunc(output)
	if err != nil {
		logger.Warnf("Dedup hook: cannot key replayed output: %v", err)
		return
	}
	st.SetIfAbsent(DedupKeyPrefix+key, true)
}

// NewFilterHook marks an output FILTERED when keep returns false.
func NewFilterHook(keep func(output []interface{}) bool) port.CompletionHook {
	return port.CompletionHookFunc(func(ctx context.Context, output []interface{}, st *state.SharedState) model.RecordStatus {
		if keep(output) {
			return model.RecordStatusCompleted
		}
		return model.RecordStatusFiltered
	})
}

// NewErrorCountHook counts failed attempts under key, and per error type
// under "<key>.<ErrorTypeName>".
func NewErrorCountHook(key string) port.ErrorHook {
	return port.ErrorHookFunc(func(ctx context.Context, err error, st *state.SharedState) {
		st.Increment(key, 1)
		st.Increment(key+"."+exception.ErrorTypeName(err), 1)
	})
}
