package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/n8nctl/pkg/n8n"
	"gopkg.in/yaml.v3"
)

// DefaultExpectedCredentials are the credential names the shipped
// workflows reference.
var DefaultExpectedCredentials = []string{
	"Salesforce account - Odoo Sandbox",
	"Odoo account - Local",
}

// Settings is the content of config.yaml.
type Settings struct {
	BaseURL             string            `yaml:"base_url"`
	Timeout             time.Duration     `yaml:"timeout"`
	WorkflowsDir        string            `yaml:"workflows_dir"`
	BackupsDir          string            `yaml:"backups_dir"`
	ExportsDir          string            `yaml:"exports_dir"`
	ExpectedCredentials []string          `yaml:"expected_credentials"`
	CredentialRenames   map[string]string `yaml:"credential_renames,omitempty"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		BaseURL:             n8n.DefaultBaseURL,
		Timeout:             n8n.DefaultTimeout,
		WorkflowsDir:        "../workflows",
		BackupsDir:          "../backups",
		ExportsDir:          "../exports",
		ExpectedCredentials: append([]string(nil), DefaultExpectedCredentials...),
	}
}

// loadSettings reads path over the defaults. A missing file is created
// with the defaults.
func loadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data, err := yaml.Marshal(settings)
		if err != nil {
			return settings, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return settings, fmt.Errorf("failed to write default config: %w", err)
		}
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return settings, nil
}

// baseURL returns the --base-url flag, falling back to config.yaml.
// Trailing slashes are dropped so the value can key the keyring.
func baseURL() string {
	url := GlobalConfig.BaseURL
	if url == "" {
		url = GlobalConfig.Settings.BaseURL
	}
	if url == "" {
		url = n8n.DefaultBaseURL
	}
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// timeout returns the --timeout flag, falling back to config.yaml.
func timeout() time.Duration {
	if GlobalConfig.Timeout > 0 {
		return GlobalConfig.Timeout
	}
	if GlobalConfig.Settings.Timeout > 0 {
		return GlobalConfig.Settings.Timeout
	}
	return n8n.DefaultTimeout
}

func dirArg(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}
