// Package config loads store configuration from YAML, merging an
// optional per-store file over the user's global file over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full store configuration.
type Config struct {
	User    UserConfig    `yaml:"user"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// UserConfig identifies the acting user on operations that record an
// actor.
type UserConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// StoreConfig holds persistence and engine settings.
type StoreConfig struct {
	// Path of the bbolt database file. Empty selects the in-memory
	// stores.
	Path string `yaml:"path,omitempty"`
	// DefaultLockTTL applies to lock acquisitions without an explicit
	// duration. Zero means locks never expire on their own.
	DefaultLockTTL time.Duration `yaml:"default_lock_ttl,omitempty"`
	// MaxLineageDepth bounds ancestor walks.
	MaxLineageDepth int `yaml:"max_lineage_depth,omitempty"`
	// IdentityKeys overrides the identity field per sequence name.
	IdentityKeys map[string]string `yaml:"identity_keys,omitempty"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:            "verso.db",
			MaxLineageDepth: 1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GlobalPath returns the path of the user's global config file.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".versoconfig.yaml"), nil
}

// LocalPath is the per-store config file looked up in the working
// directory.
const LocalPath = "verso.yaml"

// Load merges the local file over the global file over defaults.
// Missing files are not errors; malformed ones are.
func Load() (*Config, error) {
	cfg := Default()

	if globalPath, err := GlobalPath(); err == nil {
		if err := loadInto(globalPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := loadInto(LocalPath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single config file over defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Author returns the "Name <email>" form used as version actor, or an
// error telling the user how to configure it.
func (c *Config) Author() (string, error) {
	if c.User.Name == "" {
		return "", fmt.Errorf("user.name not configured; set it in %s", LocalPath)
	}
	if c.User.Email == "" {
		return c.User.Name, nil
	}
	return fmt.Sprintf("%s <%s>", c.User.Name, c.User.Email), nil
}

func loadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
