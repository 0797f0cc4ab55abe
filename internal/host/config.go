package host

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/statsd-elastic/internal/backend"
	"github.com/ethpandaops/statsd-elastic/internal/export"
)

// Config is the top-level configuration for statsd-elastic.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// FlushInterval is how often a snapshot is flushed. Defaults to 10s.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// SnapshotPath is the JSON snapshot file read every cycle.
	SnapshotPath string `yaml:"snapshot_path"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`

	// Elasticsearch configures the flush backend.
	Elasticsearch backend.Config `yaml:"elasticsearch"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		FlushInterval: 10 * time.Second,
		Health: export.HealthConfig{
			Addr: ":9090",
		},
		Elasticsearch: backend.DefaultConfig(),
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.Elasticsearch.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive")
	}

	return c.Elasticsearch.Validate()
}
