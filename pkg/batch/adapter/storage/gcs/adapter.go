// Package gcs provides a Google Cloud Storage implementation of the storage
// adapter interfaces.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/datagen/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/datagen/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/datagen/pkg/batch/core/config"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"
)

// ProviderType defines the type identifier for this provider.
const ProviderType = "gcs"

type gcsAdapter struct {
	client *gcstorage.Client
	bucket *gcstorage.BucketHandle
	prefix string
	name   string
}

var _ storageAdapter.StorageConnection = (*gcsAdapter)(nil)

// NewGCSAdapter opens a client for cfg.BucketName. Credentials come from
// cfg.CredentialsFile or, when empty, from the application default credentials.
func NewGCSAdapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': bucket_name must be specified in configuration", name)
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcstorage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	return NewGCSAdapterWithClient(client, cfg, name), nil
}

// NewGCSAdapterWithClient wraps an existing client, e.g. one pointed at an emulator.
func NewGCSAdapterWithClient(client *gcstorage.Client, cfg storageConfig.StorageConfig, name string) storageAdapter.StorageConnection {
	return &gcsAdapter{
		client: client,
		bucket: client.Bucket(cfg.BucketName),
		prefix: strings.Trim(cfg.Prefix, "/"),
		name:   name,
	}
}

func (a *gcsAdapter) Name() string { return a.name }

func (a *gcsAdapter) Type() string { return ProviderType }

// Close closes the client.
func (a *gcsAdapter) Close() error {
	logger.Debugf("GCS storage adapter '%s' closed.", a.name)
	return a.client.Close()
}

func (a *gcsAdapter) key(objectName string) string {
	if a.prefix == "" {
		return objectName
	}
	return path.Join(a.prefix, objectName)
}

// Upload streams data into the object. The object becomes visible only once
// the writer is closed successfully.
func (a *gcsAdapter) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	w := a.bucket.Object(a.key(objectName)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	return nil
}

// Download opens a reader on the object.
func (a *gcsAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	r, err := a.bucket.Object(a.key(objectName)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("'%s': %w", objectName, storageAdapter.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to download '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	return r, nil
}

// ListObjects pages through the bucket and calls fn with names relative to the prefix.
func (a *gcsAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	it := a.bucket.Objects(ctx, &gcstorage.Query{Prefix: a.key(prefix)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix '%s' (gcs adapter '%s'): %w", prefix, a.name, err)
		}
		name := attrs.Name
		if a.prefix != "" {
			name = strings.TrimPrefix(name, a.prefix+"/")
		}
		if err := fn(name); err != nil {
			return err
		}
	}
}

// DeleteObject removes the object. A missing object is not an error.
func (a *gcsAdapter) DeleteObject(ctx context.Context, objectName string) error {
	err := a.bucket.Object(a.key(objectName)).Delete(ctx)
	if err != nil && !errors.Is(err, gcstorage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	return nil
}

// NewGCSProvider creates the provider of gcs stores.
func NewGCSProvider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return storageAdapter.NewBaseProvider(cfg, ProviderType, NewGCSAdapter)
}
