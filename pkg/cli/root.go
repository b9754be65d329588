package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/n8nctl/internal/logging"
	"github.com/spf13/cobra"
)

const (
	// Version is the current version of n8nctl
	Version = "1.0.0"

	configDirEnv = "N8NCTL_CONFIG_DIR"
)

// Config holds the global configuration for the CLI
type Config struct {
	ConfigDir string
	Debug     bool
	BaseURL   string
	Timeout   time.Duration

	// Settings is loaded from config.yaml before any command runs.
	Settings Settings
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for n8nctl
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "n8nctl",
		Short: "n8nctl - Deploy and back up n8n workflows",
		Long: `n8nctl keeps an n8n server in sync with a directory of workflow definitions.
It publishes definitions by name (updating existing workflows, creating new ones),
backs up and exports the server's configuration, and checks that the credentials
the workflows reference exist.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.n8nctl)")
	cmd.PersistentFlags().StringVar(&GlobalConfig.BaseURL, "base-url", "", "Server API URL (default from config, http://localhost:5678/api/v1)")
	cmd.PersistentFlags().DurationVar(&GlobalConfig.Timeout, "timeout", 0, "HTTP request timeout (default from config, 30s)")

	cmd.AddCommand(NewDeployCommand())
	cmd.AddCommand(NewBackupCommand())
	cmd.AddCommand(NewExportCommand())
	cmd.AddCommand(NewVerifyCommand())
	cmd.AddCommand(NewCredentialsCommand())
	cmd.AddCommand(NewRenameCredentialsCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewAPIKeyCommand())

	return cmd
}

// initConfig resolves the configuration directory and loads config.yaml,
// creating it with defaults on first use.
func initConfig() error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv(configDirEnv); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		GlobalConfig.ConfigDir = filepath.Join(homeDir, ".n8nctl")
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settings, err := loadSettings(GetConfigPath())
	if err != nil {
		return err
	}
	GlobalConfig.Settings = settings
	return nil
}

// GetConfigDir returns the configuration directory path
// Priority order: 1) N8NCTL_CONFIG_DIR env var, 2) GlobalConfig.ConfigDir, 3) ~/.n8nctl
func GetConfigDir() string {
	if envDir := os.Getenv(configDirEnv); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".n8nctl"
		}
		return filepath.Join(homeDir, ".n8nctl")
	}
	return GlobalConfig.ConfigDir
}

// GetConfigPath returns the path to config.yaml
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

func newLogger(cmd *cobra.Command) logging.Logger {
	return logging.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), GlobalConfig.Debug)
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
