package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bimhub/bimhub/internal/bytesize"
	"github.com/bimhub/bimhub/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyAPIDefaults(&cfg.API)
	applyMetricsDefaults(&cfg.Metrics)
	applyDatabaseDefaults(&cfg.Database)
	applyContentDefaults(&cfg.Content)
	applyAuthDefaults(&cfg.Auth)
	applyUploadDefaults(&cfg.Upload)
	applyProcessingDefaults(&cfg.Processing)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Sample all traces unless told otherwise
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyAPIDefaults sets HTTP API server defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	// Upload and download bodies stream, so read/write timeouts bound
	// whole transfers rather than single round trips.
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyDatabaseDefaults sets entity store defaults.
func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = ContentStoreFS
	}
	if cfg.Type == ContentStoreFS && cfg.FS.Path == "" {
		cfg.FS.Path = filepath.Join(getDataDir(), "content")
	}
	if cfg.Type == ContentStoreS3 && cfg.S3.PresignTTL == 0 {
		cfg.S3.PresignTTL = 15 * time.Minute
	}
}

// applyAuthDefaults sets authentication defaults.
// JWTSecret has no default, it is required and must be configured.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "bimhub"
	}
	if cfg.Audience == "" {
		cfg.Audience = "bimhub-api"
	}
	if cfg.AccessTokenDuration == 0 {
		cfg.AccessTokenDuration = time.Hour
	}
	if cfg.RefreshTokenDuration == 0 {
		cfg.RefreshTokenDuration = 30 * 24 * time.Hour
	}
	if cfg.PATDuration == 0 {
		cfg.PATDuration = 90 * 24 * time.Hour
	}
	if cfg.AuthCodeDuration == 0 {
		cfg.AuthCodeDuration = 10 * time.Minute
	}
}

// applyUploadDefaults sets upload session defaults.
func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 5 * bytesize.GiB
	}
}

// applyProcessingDefaults sets background processing defaults.
func applyProcessingDefaults(cfg *ProcessingConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	if cfg.Queue.Type == "" {
		cfg.Queue.Type = QueueTypeMemory
	}
	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = 1024
	}
	if cfg.Queue.Type == QueueTypeBadger && cfg.Queue.Path == "" {
		cfg.Queue.Path = filepath.Join(getDataDir(), "queue")
	}
}

// GetDefaultConfig returns a Config struct with all default values
// applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
