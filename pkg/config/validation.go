package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/bimhub/bimhub/pkg/store"
)

// Validate checks the configuration for invalid or inconsistent values.
//
// Struct tags cover range and enum checks; cross-field rules that
// depend on which backend is selected are checked explicitly.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	if err := validateContent(&cfg.Content); err != nil {
		return err
	}
	if err := validateAuth(&cfg.Auth); err != nil {
		return err
	}
	if err := validateProcessing(&cfg.Processing); err != nil {
		return err
	}

	return nil
}

func validateDatabase(cfg *store.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if cfg.Enabled && cfg.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	if cfg.Profiling.Enabled && cfg.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling is enabled but no endpoint is configured")
	}
	return nil
}

func validateContent(cfg *ContentConfig) error {
	switch cfg.Type {
	case ContentStoreFS:
		if cfg.FS.Path == "" {
			return fmt.Errorf("content: fs path is required")
		}
	case ContentStoreS3:
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("content: s3 bucket is required")
		}
		if cfg.S3.Region == "" && cfg.S3.Endpoint == "" {
			return fmt.Errorf("content: s3 region or endpoint is required")
		}
	case ContentStoreMemory:
		// Nothing to check
	}
	return nil
}

// validateAuth checks the JWT secret length when one is configured.
// Presence is enforced at server startup so that offline commands
// (init, config schema) work without a secret.
func validateAuth(cfg *AuthConfig) error {
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("auth: jwt_secret must be at least 32 characters")
	}
	return nil
}

func validateProcessing(cfg *ProcessingConfig) error {
	if cfg.Queue.Type == QueueTypeBadger && cfg.Queue.Path == "" {
		return fmt.Errorf("processing: badger queue requires a path")
	}
	return nil
}
