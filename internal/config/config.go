// Package config holds the fixed set of runtime parameters: the model
// credential, model identifier, output cap, and the two execution timeouts.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variables. The API key is required; the rest override file or
// default values.
const (
	EnvAPIKey       = "ANTHROPIC_API_KEY"
	EnvModel        = "DY_MODEL"
	EnvMaxOutput    = "DY_MAX_OUTPUT"
	EnvReadTimeout  = "DY_READ_TIMEOUT"
	EnvWriteTimeout = "DY_WRITE_TIMEOUT"
)

// Config holds all dy configuration.
type Config struct {
	// Anthropic API key. Never persisted to the config file; comes from
	// the environment.
	APIKey string `json:"-"`

	// Model identifier for all agent roles.
	Model string `json:"model"`

	// Maximum captured-output size in characters.
	MaxOutputSize int `json:"maxOutputSize"`

	// Execution timeouts in seconds.
	ReadTimeoutSecs  int `json:"readTimeoutSecs"`
	WriteTimeoutSecs int `json:"writeTimeoutSecs"`

	// Directory for the run journal and log file.
	DataDir string `json:"dataDir"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Model:            "claude-sonnet-4-20250514",
		MaxOutputSize:    100_000,
		ReadTimeoutSecs:  60,
		WriteTimeoutSecs: 300,
		DataDir:          filepath.Join(home, ".dy"),
	}
}

// Load reads config from a JSON file, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes config to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// ApplyEnv overlays environment variables and validates that the required
// credential is present.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: %s is not set", EnvAPIKey)
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvMaxOutput); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid %s: %q", EnvMaxOutput, v)
		}
		c.MaxOutputSize = n
	}
	if v := os.Getenv(EnvReadTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid %s: %q", EnvReadTimeout, v)
		}
		c.ReadTimeoutSecs = n
	}
	if v := os.Getenv(EnvWriteTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: invalid %s: %q", EnvWriteTimeout, v)
		}
		c.WriteTimeoutSecs = n
	}
	return nil
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// ReadTimeout is the bound for read/planning executions.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSecs) * time.Second
}

// WriteTimeout is the bound for approved write executions.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSecs) * time.Second
}
