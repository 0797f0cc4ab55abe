package http

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config configures the Elasticsearch bulk transport.
type Config struct {
	// Scheme is the URL scheme of the endpoint. Defaults to http.
	Scheme string `yaml:"scheme"`

	// Host is the Elasticsearch host. Defaults to localhost.
	Host string `yaml:"host"`

	// Port is the Elasticsearch HTTP port. Defaults to 9200.
	Port int `yaml:"port"`

	// Path is prepended to "<index>/_bulk". Defaults to "/".
	Path string `yaml:"path"`

	// Username and Password enable basic auth when either is set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// InsecureSkipVerify disables TLS certificate verification for https.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// Headers are additional HTTP headers to include in requests.
	Headers map[string]string `yaml:"headers"`

	// Compression specifies the request body compression.
	// Valid values: none, gzip, deflate. Defaults to none.
	Compression string `yaml:"compression"`

	// ExportTimeout bounds a single bulk request.
	// Defaults to 30s.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// BatchTimeout is the longest a queued request waits for dispatch.
	// Defaults to 1s.
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// MaxQueueSize is the number of flush cycles that may wait for
	// delivery. Cycles beyond it are dropped. Defaults to 64.
	MaxQueueSize int `yaml:"max_queue_size"`

	// Workers is the number of requests that may be in flight at once.
	// Defaults to 2.
	Workers int `yaml:"workers"`

	// KeepAlive enables HTTP keep-alive connections.
	// Defaults to true.
	KeepAlive *bool `yaml:"keep_alive"`

	// DebugPayload logs every bulk body at debug level.
	DebugPayload bool `yaml:"debug_payload"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	keepAlive := true

	return Config{
		Scheme:        "http",
		Host:          "localhost",
		Port:          9200,
		Path:          "/",
		Compression:   CompressionNone,
		ExportTimeout: 30 * time.Second,
		BatchTimeout:  time.Second,
		MaxQueueSize:  64,
		Workers:       2,
		KeepAlive:     &keepAlive,
	}
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Scheme == "" {
		c.Scheme = defaults.Scheme
	}

	if c.Host == "" {
		c.Host = defaults.Host
	}

	if c.Port <= 0 {
		c.Port = defaults.Port
	}

	if c.Path == "" {
		c.Path = defaults.Path
	}

	if c.Compression == "" {
		c.Compression = defaults.Compression
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaults.ExportTimeout
	}

	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaults.BatchTimeout
	}

	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaults.MaxQueueSize
	}

	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}

	if c.KeepAlive == nil {
		c.KeepAlive = defaults.KeepAlive
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("invalid scheme: %s", c.Scheme)
	}

	if c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Workers <= 0 {
		return errors.New("workers must be greater than 0")
	}

	if c.MaxQueueSize <= 0 {
		return errors.New("max_queue_size must be greater than 0")
	}

	switch c.Compression {
	case "", CompressionNone, CompressionGzip, CompressionDeflate:
		// Valid.
	default:
		return errors.New("invalid compression type: " + c.Compression)
	}

	return nil
}

// IsKeepAlive returns whether HTTP keep-alive is enabled.
func (c *Config) IsKeepAlive() bool {
	if c.KeepAlive == nil {
		return true
	}

	return *c.KeepAlive
}

// BaseURL returns scheme://host:port.
func (c *Config) BaseURL() string {
	u := url.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}

	return u.String()
}

// BulkURL returns the bulk endpoint for an index: {base}{path}{index}/_bulk.
func (c *Config) BulkURL(index string) string {
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.BaseURL() + path + index + "/_bulk"
}
