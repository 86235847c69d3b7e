// Package local provides a local file system implementation of the storage adapter interfaces.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	storageAdapter "github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/datagen/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

const (
	// ProviderType defines the type identifier for this local storage provider.
	ProviderType = "local"
)

// localAdapter implements storage.StorageConnection on a directory tree.
type localAdapter struct {
	root string
	name string
}

// Verify that localAdapter implements the storage.StorageConnection interface.
var _ storageAdapter.StorageConnection = (*localAdapter)(nil)

// NewLocalAdapter creates a localAdapter rooted at BaseDir/BucketName/Prefix,
// creating the directory if it does not exist.
func NewLocalAdapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage adapter '%s': BaseDir must be specified in configuration", name)
	}
	root, err := filepath.Abs(filepath.Join(cfg.BaseDir, cfg.BucketName, filepath.FromSlash(cfg.Prefix)))
	if err != nil {
		return nil, fmt.Errorf("local storage adapter '%s': failed to resolve BaseDir '%s': %w", name, cfg.BaseDir, err)
	}

	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("local storage adapter '%s': failed to create '%s': %w", name, root, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage adapter '%s': failed to stat '%s': %w", name, root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage adapter '%s': '%s' is not a directory", name, root)
	}

	return &localAdapter{root: root, name: name}, nil
}

// Close does nothing for the local file system adapter as it holds no special resources.
func (a *localAdapter) Close() error {
	logger.Debugf("Local storage adapter '%s' closed.", a.name)
	return nil
}

// Type returns the type of the adapter, which is "local".
func (a *localAdapter) Type() string {
	return ProviderType
}

// Name returns the name of this connection.
func (a *localAdapter) Name() string {
	return a.name
}

// Upload writes data to a temporary file next to the target and renames it
// into place, so readers never observe a partial object.
func (a *localAdapter) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return fmt.Errorf("failed to resolve path for upload: %w", err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in '%s': %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data to file '%s': %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file '%s': %w", fullPath, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move data into '%s': %w", fullPath, err)
	}
	logger.Debugf("Uploaded data to '%s' (local adapter '%s').", fullPath, a.name)
	return nil
}

// Download opens the object's file. The returned io.ReadCloser must be closed by the caller.
func (a *localAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path for download: %w", err)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("'%s': %w", objectName, storageAdapter.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open file '%s': %w", fullPath, err)
	}
	return file, nil
}

// ListObjects walks the root and calls fn for each file whose object name starts with prefix.
func (a *localAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for '%s' from '%s': %w", path, a.root, err)
		}
		objectName := filepath.ToSlash(rel)
		if !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
	if err != nil {
		return fmt.Errorf("failed to list objects in '%s' with prefix '%s': %w", a.root, prefix, err)
	}
	return nil
}

// DeleteObject deletes the object's file. A missing file is not an error.
func (a *localAdapter) DeleteObject(ctx context.Context, objectName string) error {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return fmt.Errorf("failed to resolve path for delete: %w", err)
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Debugf("Attempted to delete non-existent object '%s' (local adapter '%s').", fullPath, a.name)
			return nil
		}
		return fmt.Errorf("failed to delete file '%s': %w", fullPath, err)
	}
	return nil
}

// resolvePath maps an object name to a file under the root and rejects names
// that escape it.
func (a *localAdapter) resolvePath(objectName string) (string, error) {
	if objectName == "" {
		return "", fmt.Errorf("object name must not be empty (local adapter '%s')", a.name)
	}
	fullPath := filepath.Join(a.root, filepath.FromSlash(objectName))
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object '%s' resolves outside of '%s'", objectName, a.root)
	}
	return fullPath, nil
}

// NewLocalProvider creates the provider of local stores.
func NewLocalProvider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return storageAdapter.NewBaseProvider(cfg, ProviderType, NewLocalAdapter)
}
