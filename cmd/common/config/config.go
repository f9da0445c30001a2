// Package config provides configuration loading for wsterm.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config represents the wsterm configuration file structure.
type Config struct {
	Rows     int    `json:"rows,omitempty"`
	Cols     int    `json:"cols,omitempty"`
	LogLevel string `json:"log_level,omitempty"`

	// Client timeouts. Zero disables them, which is the default: a
	// connection that never opens leaves the terminal waiting.
	ConnectTimeoutMillis int64 `json:"connect_timeout_millis,omitempty"`
	IdleTimeoutMillis    int64 `json:"idle_timeout_millis,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Rows:     DefaultRows,
		Cols:     DefaultCols,
		LogLevel: "info",
	}
}

// ConnectTimeout returns the configured connect timeout, zero when disabled.
func (c *Config) ConnectTimeout() time.Duration {
	return millis(c.ConnectTimeoutMillis)
}

// IdleTimeout returns the configured idle timeout, zero when disabled.
func (c *Config) IdleTimeout() time.Duration {
	return millis(c.IdleTimeoutMillis)
}

func millis(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// ConfigDir returns the wsterm config directory (~/.wsterm).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wsterm")
}

// ConfigPath returns the path to the config file (~/.wsterm/config.json).
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads the config from ~/.wsterm/config.json.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads the config at path, filling unset fields with defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if config.Rows <= 0 {
		config.Rows = defaults.Rows
	}
	if config.Cols <= 0 {
		config.Cols = defaults.Cols
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	return &config, nil
}

// Save saves the config to ~/.wsterm/config.json.
func Save(config *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
