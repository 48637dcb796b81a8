// Package config loads and validates the BIMHub server configuration
// from YAML files, environment variables, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bimhub/bimhub/internal/bytesize"
	"github.com/bimhub/bimhub/pkg/store"
)

// Config represents the BIMHub server configuration.
//
// This structure captures static configuration aspects of the server:
//   - Logging configuration
//   - Telemetry/tracing and profiling configuration
//   - HTTP API server settings
//   - Database connection (entity persistence)
//   - Content store backend (filesystem or S3)
//   - Authentication (JWT signing, token lifetimes)
//   - Upload session handling
//   - Background processing pipeline
//
// Dynamic state (workspaces, projects, users, OAuth apps) is managed
// through the REST API and stored in the database.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BIMHUB_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry configures OpenTelemetry tracing and Pyroscope profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// API configures the HTTP API server
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics configures the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Database configures the entity store backend
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Content configures the content store backend for file bytes
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Auth configures token issuance and validation
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Upload configures upload session handling
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Processing configures the background conversion pipeline
	Processing ProcessingConfig `mapstructure:"processing" yaml:"processing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	// Default: INFO
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects the output format: text or json
	// Default: text
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is the log destination: stdout, stderr, or a file path
	// Default: stdout
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig contains OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC endpoint.
	// Default: localhost:4317
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS on the exporter connection.
	// Default: true (local collectors rarely carry certificates)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate between 0.0 and 1.0.
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling configures Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig contains Pyroscope continuous profiling configuration.
type ProfilingConfig struct {
	// Enabled controls whether profiling is active.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL.
	// Default: http://localhost:4040
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes selects the profile types to collect.
	// Default: cpu, alloc_objects, alloc_space, inuse_objects,
	// inuse_space, goroutines
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// APIConfig contains HTTP API server configuration.
type APIConfig struct {
	// Host is the listen address.
	// Default: 0.0.0.0
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the listen port.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request.
	// Uploads stream request bodies, so this is generous. Default: 15m
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 15m
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// BaseURL is the externally visible base URL, used in OAuth
	// redirects and download links (e.g. "https://bim.example.com").
	// Default: http://localhost:<port>
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics listen port.
	// Default: 9090 when enabled
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ContentStoreType selects the content store backend.
type ContentStoreType string

const (
	// ContentStoreFS stores content on the local filesystem.
	ContentStoreFS ContentStoreType = "fs"

	// ContentStoreS3 stores content in an S3-compatible object store.
	ContentStoreS3 ContentStoreType = "s3"

	// ContentStoreMemory keeps content in process memory. Tests only.
	ContentStoreMemory ContentStoreType = "memory"
)

// ContentConfig contains content store configuration.
type ContentConfig struct {
	// Type selects the backend: fs, s3, or memory.
	// Default: fs
	Type ContentStoreType `mapstructure:"type" validate:"omitempty,oneof=fs s3 memory" yaml:"type"`

	// FS configures the filesystem backend.
	FS FSContentConfig `mapstructure:"fs" yaml:"fs"`

	// S3 configures the S3 backend.
	S3 S3ContentConfig `mapstructure:"s3" yaml:"s3"`
}

// FSContentConfig contains filesystem content store configuration.
type FSContentConfig struct {
	// Path is the root directory for stored content.
	// Default: $XDG_DATA_HOME/bimhub/content
	Path string `mapstructure:"path" yaml:"path"`
}

// S3ContentConfig contains S3 content store configuration.
type S3ContentConfig struct {
	// Bucket is the bucket name. The bucket must already exist.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Region is the AWS region.
	Region string `mapstructure:"region" yaml:"region"`

	// Endpoint overrides the S3 endpoint for MinIO and other
	// S3-compatible stores.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey are static credentials. When
	// empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle uses path-style addressing (required by MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// PresignTTL is the lifetime of presigned download URLs.
	// Default: 15m
	PresignTTL time.Duration `mapstructure:"presign_ttl" yaml:"presign_ttl,omitempty"`
}

// AuthConfig contains authentication configuration.
type AuthConfig struct {
	// JWTSecret is the HMAC signing key for access tokens.
	// Must be at least 32 characters. Required.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`

	// Issuer is the token issuer claim.
	// Default: bimhub
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// Audience is the token audience claim.
	// Default: bimhub-api
	Audience string `mapstructure:"audience" yaml:"audience"`

	// AccessTokenDuration is the access token lifetime.
	// Default: 1h
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" yaml:"access_token_duration"`

	// RefreshTokenDuration is the refresh token lifetime.
	// Default: 720h (30 days)
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" yaml:"refresh_token_duration"`

	// PATDuration is the default personal access token lifetime.
	// Default: 2160h (90 days)
	PATDuration time.Duration `mapstructure:"pat_duration" yaml:"pat_duration"`

	// AuthCodeDuration is the authorization code lifetime.
	// Default: 10m
	AuthCodeDuration time.Duration `mapstructure:"auth_code_duration" yaml:"auth_code_duration"`

	// DevMode enables the unauthenticated token mint endpoint for local
	// development. Never enable in production.
	// Default: false
	DevMode bool `mapstructure:"dev_mode" yaml:"dev_mode"`
}

// UploadConfig contains upload session configuration.
type UploadConfig struct {
	// SessionTTL is the reservation window before an idle session
	// expires. Default: 30m
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`

	// SweepInterval is how often expired sessions are reaped.
	// Default: 1m
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// MaxSize is the maximum accepted upload size. Accepts
	// human-readable values like "2Gi" or "500MB".
	// Default: 5Gi
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size"`
}

// QueueType selects the job queue backend.
type QueueType string

const (
	// QueueTypeMemory is an unbounded in-process queue.
	QueueTypeMemory QueueType = "memory"

	// QueueTypeBounded is a fixed-capacity in-process queue.
	QueueTypeBounded QueueType = "bounded"

	// QueueTypeBadger is a durable on-disk queue that survives restarts.
	QueueTypeBadger QueueType = "badger"
)

// ProcessingConfig contains background processing configuration.
type ProcessingConfig struct {
	// Workers is the number of concurrent job workers.
	// Default: 2
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// JobTimeout bounds a single conversion job.
	// Default: 30m
	JobTimeout time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`

	// Queue configures the job queue backend.
	Queue QueueConfig `mapstructure:"queue" yaml:"queue"`
}

// QueueConfig contains job queue configuration.
type QueueConfig struct {
	// Type selects the backend: memory, bounded, or badger.
	// Default: memory
	Type QueueType `mapstructure:"type" validate:"omitempty,oneof=memory bounded badger" yaml:"type"`

	// Capacity is the bounded queue capacity.
	// Default: 1024
	Capacity int `mapstructure:"capacity" validate:"omitempty,min=1" yaml:"capacity"`

	// Path is the badger database directory. Required for badger.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BIMHUB_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly
// instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  bimhub init\n\n"+
				"Or specify a custom config file:\n"+
				"  bimhub <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  bimhub init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files may contain the JWT secret and S3 credentials, so
	// restrict permissions to the owner.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config
// file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the BIMHUB_ prefix and underscores.
	// Example: BIMHUB_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BIMHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/bimhub/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config
// file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Also check for os.PathError when an explicit config file
		// doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts
// strings and integers to bytesize.ByteSize. This enables config files
// to use human-readable sizes like "1Gi", "500Mi", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts
// strings to time.Duration. This enables config files to use
// human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "bimhub")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "bimhub")
}

// getDataDir returns the data directory path for locally stored
// content.
//
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share, or falls back
// to the current directory if the home directory cannot be determined.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "bimhub")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "bimhub")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default
// location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for
// the init command).
func GetConfigDir() string {
	return getConfigDir()
}
