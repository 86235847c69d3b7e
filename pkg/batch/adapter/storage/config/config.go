// Package config holds the settings of one named blob store, as found under
// the `datagen.blob` section of the application config.
package config

// StorageConfig holds configuration for a single blob store.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of store ("local" or "gcs").
	BucketName      string `yaml:"bucket_name"`      // Bucket for gcs; a subdirectory of BaseDir for local.
	Prefix          string `yaml:"prefix"`           // Prepended to every object name.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for gcs. Application default credentials when empty.
	BaseDir         string `yaml:"base_dir"`         // Root directory for local file system operations.
}
