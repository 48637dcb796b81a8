package commands

import (
	"fmt"

	"github.com/bimhub/bimhub/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Show the fully resolved configuration after merging the config file,
environment variables, and defaults. Secrets are redacted.

Examples:
  # Show configuration from the default location
  bimhub config show

  # Show a specific config file
  bimhub config show --config /etc/bimhub/config.yaml`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the BimHub configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  bimhub config validate

  # Validate specific config file
  bimhub config validate --config /etc/bimhub/config.yaml`,
	RunE: runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	redacted := *cfg
	if redacted.Auth.JWTSecret != "" {
		redacted.Auth.JWTSecret = "<redacted>"
	}
	if redacted.Content.S3.SecretAccessKey != "" {
		redacted.Content.S3.SecretAccessKey = "<redacted>"
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Printf("# Source: %s\n", getConfigSource(GetConfigFile()))
	fmt.Print(string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	displayPath := GetConfigFile()
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	if cfg.Auth.JWTSecret == "" {
		warnings = append(warnings, "JWT secret not configured - API authentication will fail")
	}
	if cfg.Auth.DevMode {
		warnings = append(warnings, "dev mode is enabled - the unauthenticated token mint endpoint is exposed")
	}
	if cfg.Content.Type == config.ContentStoreMemory {
		warnings = append(warnings, "memory content store configured - uploaded content is lost on restart")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	return nil
}
