// Package config holds kojibot configuration: defaults, YAML file loading,
// and environment overrides. Precedence is flags > environment > file > defaults;
// flags are applied by the command layer after Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all kojibot configuration.
type Config struct {
	// Hub is the remote Koji hub to extract from.
	Hub HubConfig `yaml:"hub"`

	// Dump controls the extraction pipeline.
	Dump DumpConfig `yaml:"dump"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// HubConfig configures the XML-RPC hub client.
type HubConfig struct {
	// URL of the hub endpoint, e.g. https://koji.example.org/kojihub
	URL string `yaml:"url"`

	// Timeout for a single round trip. Batches share the same per-request
	// timeout; there is no retry on expiry.
	Timeout string `yaml:"timeout"`
}

// DumpConfig configures the query pipeline.
type DumpConfig struct {
	// BatchSize caps the number of calls per multiCall round trip.
	// Large batches risk server-side timeouts; this is tuned manually,
	// never adaptively.
	BatchSize int `yaml:"batch_size"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			URL:     "http://localhost/kojihub",
			Timeout: "300s",
		},
		Dump: DumpConfig{
			BatchSize: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("KOJI_HUB_URL"); url != "" {
		c.Hub.URL = url
	}
	if timeout := os.Getenv("KOJI_TIMEOUT"); timeout != "" {
		c.Hub.Timeout = timeout
	}
	if size := os.Getenv("KOJI_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			c.Dump.BatchSize = n
		}
	}
	if level := os.Getenv("KOJIBOT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// HubTimeout returns the hub round-trip timeout as a duration.
func (c *Config) HubTimeout() time.Duration {
	d, err := time.ParseDuration(c.Hub.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}
