package config

// EmbeddedConfig holds the raw YAML configuration, typically embedded by main.go.
type EmbeddedConfig []byte

// JobConfig holds defaults for the job manager.
type JobConfig struct {
	// ProjectID groups master jobs. A random ID is used when empty.
	ProjectID string `yaml:"project_id"`
	// MaxConcurrency is the maximum number of attempts in flight.
	MaxConcurrency int `yaml:"max_concurrency"`
	// TargetCount is the number of completed records to produce. 0 means one per input.
	TargetCount int `yaml:"target_count"`
	// TaskTimeoutSeconds bounds a single call of the work function. 0 disables the timeout.
	TaskTimeoutSeconds int `yaml:"task_timeout_seconds"`
	// PollIntervalMillis is how long the scheduler sleeps while the queue is empty.
	PollIntervalMillis int `yaml:"poll_interval_millis"`
	// ShowProgress enables the progress bar renderer.
	ShowProgress bool `yaml:"show_progress"`
}

// RetryConfig holds the per-input retry policy.
type RetryConfig struct {
	// MaxAttemptsPerInput caps the attempts of one queued input. 0 means unlimited.
	MaxAttemptsPerInput int `yaml:"max_attempts_per_input"`
	// InitialIntervalMillis is the first backoff delay before a failed input is requeued. 0 requeues immediately.
	InitialIntervalMillis int `yaml:"initial_interval_millis"`
	// MaxIntervalMillis caps the backoff delay.
	MaxIntervalMillis int `yaml:"max_interval_millis"`
	// Multiplier grows the backoff delay between attempts.
	Multiplier float64 `yaml:"multiplier"`
	// NonRetryable lists registered error names that drop an input after its first failure.
	NonRetryable []string `yaml:"non_retryable"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Type is "inmemory" or "sql".
	Type string `yaml:"type"`
	// MetadataDBRef names the entry under `database` used for metadata tables.
	MetadataDBRef string `yaml:"metadata_db_ref"`
	// BlobRef names the entry under `blob` used for payloads and request configs.
	BlobRef string `yaml:"blob_ref"`
	// MigrationMode is "auto" (gorm AutoMigrate), "migrate" (versioned SQL migrations) or "none".
	MigrationMode string `yaml:"migration_mode"`
}

// ExportConfig configures the Parquet export of completed records.
type ExportConfig struct {
	// BlobRef names the entry under `blob` the Parquet files are uploaded to.
	BlobRef string `yaml:"blob_ref" mapstructure:"blob_ref"`
	// OutputBaseDir is the object prefix of exported files.
	OutputBaseDir string `yaml:"output_base_dir" mapstructure:"output_base_dir"`
	// CompressionType is "SNAPPY", "GZIP" or "NONE".
	CompressionType string `yaml:"compression_type" mapstructure:"compression_type"`
	// PartitionFormat is the time layout of the Hive-style "dt=" partition.
	PartitionFormat string `yaml:"partition_format" mapstructure:"partition_format"`
}

// ObservabilityConfig selects metrics and tracing backends.
type ObservabilityConfig struct {
	// Metrics is "none", "prometheus" or "otel".
	Metrics string `yaml:"metrics"`
	// Tracing is "none" or "otel".
	Tracing string `yaml:"tracing"`
	// PrometheusListenAddr serves /metrics when metrics is "prometheus". Empty disables the endpoint.
	PrometheusListenAddr string `yaml:"prometheus_listen_addr"`
	// ServiceName is reported as the OpenTelemetry service name.
	ServiceName string `yaml:"service_name"`
	// OTLPEndpoint is the collector address (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// OTLPProtocol is "grpc" or "http".
	OTLPProtocol string `yaml:"otlp_protocol"`
	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool `yaml:"otlp_insecure"`
	// MetricsAsyncBufferSize is the buffer of the asynchronous metric recorder. 0 records synchronously.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists input keys whose values are masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// DatagenConfig holds everything under the "datagen" top-level key.
type DatagenConfig struct {
	Job           JobConfig           `yaml:"job"`
	Retry         RetryConfig         `yaml:"retry"`
	Storage       StorageConfig       `yaml:"storage"`
	Export        ExportConfig        `yaml:"export"`
	System        SystemConfig        `yaml:"system"`
	Observability ObservabilityConfig `yaml:"observability"`
	Security      SecurityConfig      `yaml:"security"`
	// AdaptorConfigs holds named database connection settings, decoded by the gorm adapter.
	AdaptorConfigs map[string]interface{} `yaml:"database"`
	// BlobConfigs holds named blob store settings, decoded by the storage adapters.
	BlobConfigs map[string]interface{} `yaml:"blob"`
}

// Config is the root of the application configuration.
type Config struct {
	Datagen DatagenConfig `yaml:"datagen"`
	// EmbeddedConfig holds the raw source the config was loaded from.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Datagen: DatagenConfig{
			Job: JobConfig{
				MaxConcurrency:     10,
				TaskTimeoutSeconds: 60,
				PollIntervalMillis: 10,
			},
			Retry: RetryConfig{
				MaxAttemptsPerInput: 3,
				Multiplier:          2.0,
				MaxIntervalMillis:   30000,
			},
			Storage: StorageConfig{
				Type:          "inmemory",
				MetadataDBRef: "metadata",
				BlobRef:       "payloads",
				MigrationMode: "auto",
			},
			Export: ExportConfig{
				BlobRef:         "payloads",
				OutputBaseDir:   "exports",
				CompressionType: "SNAPPY",
				PartitionFormat: "2006-01-02",
			},
			System: SystemConfig{
				Logging: LoggingConfig{Level: "INFO"},
			},
			Observability: ObservabilityConfig{
				Metrics:      "none",
				Tracing:      "none",
				ServiceName:  "datagen",
				OTLPProtocol: "grpc",
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			AdaptorConfigs: map[string]interface{}{},
			BlobConfigs:    map[string]interface{}{},
		},
	}
}
