package repository

import (
	"context"
)

// Storage is the persistence backend of the engine. It separates small
// metadata entities (master jobs, execution jobs, record metadata) from large
// payloads (request configs, record data), which implementations typically keep
// in a blob store.
//
// All methods must be safe for concurrent use: the job manager calls them from
// many task goroutines at once.
type Storage interface {
	RequestConfigStore  // Embeds request config persistence (request_config.go)
	RecordDataStore     // Embeds record payload persistence (record.go)
	MasterJobStore      // Embeds master job metadata (master_job.go)
	ExecutionJobStore   // Embeds execution job metadata (execution_job.go)
	RecordMetadataStore // Embeds record metadata (record.go)

	// Setup prepares the backend (creating tables, directories, buckets).
	Setup(ctx context.Context) error

	// Close releases resources such as database connections.
	Close() error
}
