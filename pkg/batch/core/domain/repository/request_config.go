package repository

import (
	"context"
	"fmt"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// RequestConfigStore persists the request config a master job was started with.
type RequestConfigStore interface {
	// SaveRequestConfig stores config under refKey and returns the reference to
	// record on the master job.
	SaveRequestConfig(ctx context.Context, refKey string, config *model.RequestConfig) (string, error)

	// GetRequestConfig loads a config saved by SaveRequestConfig.
	GetRequestConfig(ctx context.Context, ref string) (*model.RequestConfig, error)
}

// ErrRequestConfigNotFound is returned when no request config exists for a reference.
var ErrRequestConfigNotFound = fmt.Errorf("request config %w", exception.ErrNotFound)

func init() {
	exception.RegisterErrorType("ErrRequestConfigNotFound", ErrRequestConfigNotFound)
}
