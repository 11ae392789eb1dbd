// Package config loads the CLI configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfeidau/pricescout/internal/provider/postgres"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk CLI configuration, read from
// ~/.pricescout/config.yaml unless an explicit path is given.
type Config struct {
	// ConnString is the PostgreSQL connection string of the backend.
	ConnString string `yaml:"conn_string"`

	// TokenSigningSecret signs access tokens. At least 32 bytes.
	TokenSigningSecret string `yaml:"token_signing_secret"`

	// SessionTTL is the access token lifetime.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// RequireVerification gates new accounts on verification.
	RequireVerification bool `yaml:"require_verification"`

	// AutoMigrate runs schema migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// DefaultPath returns ~/.pricescout/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".pricescout", "config.yaml"), nil
}

// Load reads and parses the configuration file. An empty path falls back to
// DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return &cfg, nil
}

// ProviderConfig maps the file configuration onto the backend provider
// configuration.
func (c *Config) ProviderConfig() *postgres.Config {
	return &postgres.Config{
		ConnString:          c.ConnString,
		TokenSigningSecret:  []byte(c.TokenSigningSecret),
		SessionTTL:          c.SessionTTL,
		RequireVerification: c.RequireVerification,
		AutoMigrate:         c.AutoMigrate,
	}
}
