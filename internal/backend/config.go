package backend

import (
	"fmt"

	"github.com/ethpandaops/statsd-elastic/internal/bulk"
	httpexport "github.com/ethpandaops/statsd-elastic/internal/export/http"
	"github.com/ethpandaops/statsd-elastic/internal/index"
)

// Config configures the Elasticsearch backend.
type Config struct {
	// Transport configures the connection and dispatch queue.
	Transport httpexport.Config `yaml:",inline"`

	// IndexPrefix is the index name prefix. Defaults to "statsd".
	IndexPrefix string `yaml:"index_prefix"`

	// IndexTimestamp is the index date suffix: day, month, or anything
	// else for the year only. Defaults to "day".
	IndexTimestamp string `yaml:"index_timestamp"`

	// CountType is the document type of counters. Defaults to "counter".
	CountType string `yaml:"count_type"`

	// TimerType is the document type of timer samples. Defaults to "timer".
	TimerType string `yaml:"timer_type"`

	// TimerDataType is the document type of timer aggregates.
	// Defaults to TimerType + "_stats".
	TimerDataType string `yaml:"timer_data_type"`

	// ExcludedGroups lists counter groups never exported.
	// Defaults to packets_received and bad_lines_seen.
	ExcludedGroups []string `yaml:"excluded_groups"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transport:      httpexport.DefaultConfig(),
		IndexPrefix:    "statsd",
		IndexTimestamp: string(index.GranularityDay),
		CountType:      string(bulk.CategoryCounter),
		TimerType:      string(bulk.CategoryTimer),
		ExcludedGroups: append([]string(nil), bulk.DefaultExcludedGroups...),
	}
}

// ApplyDefaults fills unset fields. It never fails.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	c.Transport.ApplyDefaults()

	if c.IndexPrefix == "" {
		c.IndexPrefix = defaults.IndexPrefix
	}

	if c.IndexTimestamp == "" {
		c.IndexTimestamp = defaults.IndexTimestamp
	}

	if c.CountType == "" {
		c.CountType = defaults.CountType
	}

	if c.TimerType == "" {
		c.TimerType = defaults.TimerType
	}

	if c.TimerDataType == "" {
		c.TimerDataType = c.TimerType + "_stats"
	}

	if c.ExcludedGroups == nil {
		c.ExcludedGroups = defaults.ExcludedGroups
	}
}

// Validate checks the transport settings.
func (c *Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}

	return nil
}

// TypeNames returns the action header types per document category.
func (c *Config) TypeNames() bulk.TypeNames {
	return bulk.TypeNames{
		Counter:    c.CountType,
		Timer:      c.TimerType,
		TimerStats: c.TimerDataType,
	}
}
