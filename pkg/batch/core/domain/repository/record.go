package repository

import (
	"context"
	"fmt"

	model "github.com/tigerroll/datagen/pkg/batch/core/domain/model"
	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
)

// RecordDataStore persists record payloads.
type RecordDataStore interface {
	// SaveRecordData stores one serialized output item and returns its reference.
	SaveRecordData(ctx context.Context, recordID, masterJobID, jobID string, payload []byte) (string, error)

	// GetRecordData loads a payload saved by SaveRecordData.
	GetRecordData(ctx context.Context, ref string) ([]byte, error)
}

// RecordMetadataStore persists record metadata.
type RecordMetadataStore interface {
	// LogRecordMetadata persists the metadata of one record.
	LogRecordMetadata(ctx context.Context, record *model.Record) error

	// GetRecordMetadata finds a record by ID.
	GetRecordMetadata(ctx context.Context, recordID string) (*model.Record, error)

	// ListRecordMetadata returns the records of a master job in creation order.
	// A non-empty jobID restricts the result to that execution job.
	ListRecordMetadata(ctx context.Context, masterJobID, jobID string) ([]*model.Record, error)
}

// ErrRecordNotFound is returned when a record or its payload is not found.
var ErrRecordNotFound = fmt.Errorf("record %w", exception.ErrNotFound)

func init() {
	exception.RegisterErrorType("ErrRecordNotFound", ErrRecordNotFound)
}
