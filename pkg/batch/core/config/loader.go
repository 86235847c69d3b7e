package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/datagen/pkg/batch/support/util/exception"
	"github.com/tigerroll/datagen/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	Expander       EnvironmentExpander `optional:"true"`
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
}

// loadConfig builds the configuration in four layers:
// defaults, then the (environment-expanded) YAML, then DATAGEN_* variables.
// A .env file, when present, is loaded into the process environment first.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	source, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in config", err, false)
	}

	cfg := NewConfig()
	// Decoding over the defaults keeps every field the YAML leaves out.
	if err := yaml.Unmarshal(source, cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false)
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// LoadConfig loads and validates the configuration.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads, validates and provides *Config.
// It also applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Datagen.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Datagen.System.Logging.Level)
	return cfg, nil
}

// Validate checks value ranges and references. Every violation is a configuration error.
func (c *Config) Validate() error {
	d := c.Datagen
	if d.Job.MaxConcurrency <= 0 {
		return exception.NewConfigurationError(moduleName, "job.max_concurrency must be positive, got %d", d.Job.MaxConcurrency)
	}
	if d.Job.TargetCount < 0 {
		return exception.NewConfigurationError(moduleName, "job.target_count must not be negative, got %d", d.Job.TargetCount)
	}
	if d.Job.TaskTimeoutSeconds < 0 {
		return exception.NewConfigurationError(moduleName, "job.task_timeout_seconds must not be negative, got %d", d.Job.TaskTimeoutSeconds)
	}
	if d.Retry.MaxAttemptsPerInput < 0 {
		return exception.NewConfigurationError(moduleName, "retry.max_attempts_per_input must not be negative, got %d", d.Retry.MaxAttemptsPerInput)
	}
	if err := checkOneOf("storage.type", d.Storage.Type, "inmemory", "sql"); err != nil {
		return err
	}
	if err := checkOneOf("storage.migration_mode", d.Storage.MigrationMode, "auto", "migrate", "none"); err != nil {
		return err
	}
	if err := checkOneOf("export.compression_type", strings.ToUpper(d.Export.CompressionType), "SNAPPY", "GZIP", "NONE"); err != nil {
		return err
	}
	if err := checkOneOf("observability.metrics", d.Observability.Metrics, "none", "prometheus", "otel"); err != nil {
		return err
	}
	if err := checkOneOf("observability.tracing", d.Observability.Tracing, "none", "otel"); err != nil {
		return err
	}
	if err := checkOneOf("observability.otlp_protocol", d.Observability.OTLPProtocol, "grpc", "http"); err != nil {
		return err
	}
	for _, name := range d.Retry.NonRetryable {
		if !exception.IsErrorTypeRegistered(name) {
			return exception.NewConfigurationError(moduleName, "retry.non_retryable references unknown error type '%s'", name)
		}
	}
	return nil
}

func checkOneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return exception.NewConfigurationError(moduleName, "%s must be one of %v, got '%s'", key, allowed, value)
}

// TaskTimeout returns the task timeout as a duration.
func (j JobConfig) TaskTimeout() time.Duration {
	return time.Duration(j.TaskTimeoutSeconds) * time.Second
}

// PollInterval returns the scheduler poll interval as a duration.
func (j JobConfig) PollInterval() time.Duration {
	return time.Duration(j.PollIntervalMillis) * time.Millisecond
}

// loadStructFromEnv recursively overrides struct fields from environment variables.
// The variable name is the upper-cased path of yaml tags joined by "_",
// e.g. DATAGEN_JOB_MAX_CONCURRENCY.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField converts value to the field's kind. Slices of strings are comma separated.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}
