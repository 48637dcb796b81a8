package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bimhub/bimhub/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample BimHub configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/bimhub/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  bimhub init

  # Initialize with custom path
  bimhub init --config /etc/bimhub/config.yaml

  # Force overwrite existing config
  bimhub init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce && config.DefaultConfigExists() && configPath == config.GetDefaultConfigPath() {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()

	// A random development secret so a freshly initialized server
	// starts without manual setup.
	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.Auth.JWTSecret = secret

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: bimhub serve")
	fmt.Printf("  3. Or specify custom config: bimhub serve --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for development use.")
	fmt.Println("  For production, generate a secure secret and use an environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Println("    export BIMHUB_AUTH_JWT_SECRET=$(openssl rand -hex 32)")

	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
