// Package storage defines the blob store abstraction used for large payloads
// (record data, request configs, exports). Concrete stores live in the local
// and gcs subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download when the object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// StorageExecutor defines generic object operations. Object names are
// slash-separated and relative to the store's bucket and prefix.
type StorageExecutor interface {
	// Upload writes data to objectName, replacing any previous content.
	Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error
	// Download opens objectName. The caller must close the reader.
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object whose name starts with prefix.
	ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, objectName string) error
}

// StorageConnection is one named blob store.
type StorageConnection interface {
	StorageExecutor

	Name() string
	Type() string
	Close() error
}

// StorageProvider manages the connections of one store type.
type StorageProvider interface {
	// GetConnection retrieves a StorageConnection with the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the store type handled by this provider (e.g. "local", "gcs").
	Type() string
}

// StorageConnectionResolver resolves a named blob store, whatever its type.
type StorageConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}

// StorageProviderGroup is an Fx tag used to group all StorageProvider implementations.
const StorageProviderGroup = `group:"storage_providers"`

// ReadAll downloads objectName into memory.
func ReadAll(ctx context.Context, conn StorageExecutor, objectName string) ([]byte, error) {
	rc, err := conn.Download(ctx, objectName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
