package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Repeated bulk lines compress well.
var bulkLines = []byte(`{"index":{"_index":"statsd-2024.03.05","_type":"counter"}}
{"ns":"api","grp":"http","tgt":"users","act":"create","val":4,"@timestamp":1709683199000}
{"index":{"_index":"statsd-2024.03.05","_type":"counter"}}
{"ns":"api","grp":"http","tgt":"users","act":"delete","val":1,"@timestamp":1709683199000}
`)

func TestCompressor_Gzip(t *testing.T) {
	c, err := NewCompressor(CompressionGzip)
	require.NoError(t, err)

	compressed, err := c.Compress(bulkLines)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(bulkLines))
	assert.Equal(t, "gzip", c.ContentEncoding())

	// Verify round-trip.
	decompressed, err := DecompressGzip(compressed)
	require.NoError(t, err)
	assert.Equal(t, bulkLines, decompressed)
}

func TestCompressor_Deflate(t *testing.T) {
	c, err := NewCompressor(CompressionDeflate)
	require.NoError(t, err)

	compressed, err := c.Compress(bulkLines)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(bulkLines))
	assert.Equal(t, "deflate", c.ContentEncoding())

	// Verify round-trip.
	decompressed, err := DecompressZlib(compressed)
	require.NoError(t, err)
	assert.Equal(t, bulkLines, decompressed)
}

func TestCompressor_None(t *testing.T) {
	for _, algorithm := range []string{CompressionNone, ""} {
		c, err := NewCompressor(algorithm)
		require.NoError(t, err)

		compressed, err := c.Compress(bulkLines)
		require.NoError(t, err)

		assert.Equal(t, bulkLines, compressed)
		assert.Equal(t, "", c.ContentEncoding())
	}
}

func TestCompressor_Unsupported(t *testing.T) {
	_, err := NewCompressor("snappy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported compression algorithm")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "defaults",
			cfg:     Config{},
			wantErr: false,
		},
		{
			name: "https",
			cfg: Config{
				Scheme: "https",
				Host:   "es.internal",
				Port:   443,
			},
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			cfg:     Config{Scheme: "ftp"},
			wantErr: true,
		},
		{
			name:    "invalid port",
			cfg:     Config{Port: 70000},
			wantErr: true,
		},
		{
			name:    "invalid compression",
			cfg:     Config{Compression: "zstd"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "http", cfg.Scheme)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, "/", cfg.Path)
	assert.Equal(t, CompressionNone, cfg.Compression)
	assert.True(t, cfg.IsKeepAlive())
}

func TestConfig_BulkURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults",
			cfg:  Config{},
			want: "http://localhost:9200/statsd-2024.03.05/_bulk",
		},
		{
			name: "path prefix",
			cfg:  Config{Host: "es", Port: 9201, Path: "/proxy/"},
			want: "http://es:9201/proxy/statsd-2024.03.05/_bulk",
		},
		{
			name: "relative path",
			cfg:  Config{Scheme: "https", Host: "es", Path: "es/"},
			want: "https://es:9200/es/statsd-2024.03.05/_bulk",
		},
		{
			name: "ipv6 host",
			cfg:  Config{Host: "::1"},
			want: "http://[::1]:9200/statsd-2024.03.05/_bulk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			assert.Equal(t, tt.want, tt.cfg.BulkURL("statsd-2024.03.05"))
		})
	}
}
