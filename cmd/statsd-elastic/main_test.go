package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flags are bound to package globals.
	cfgFile, logLevel = "", ""

	var out bytes.Buffer

	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestIndexCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "day",
			args: []string{"index", "--at", "2024-03-05T23:59:59Z"},
			want: "statsd-2024.03.05",
		},
		{
			name: "month",
			args: []string{"index", "--prefix", "metrics", "--granularity", "month", "--at", "2024-03-05T23:59:59Z"},
			want: "metrics-2024.03",
		},
		{
			name: "year",
			args: []string{"index", "--granularity", "year", "--at", "2024-03-05T23:59:59Z"},
			want: "statsd-2024",
		},
		{
			name: "offset converted to utc",
			args: []string{"index", "--at", "2024-03-05T20:00:00-05:00"},
			want: "statsd-2024.03.06",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestIndexCmd_InvalidTime(t *testing.T) {
	_, err := execute(t, "index", "--at", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing --at")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestRun_RequiresConfig(t *testing.T) {
	_, err := execute(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--config is required")
}

func TestFlushCmd(t *testing.T) {
	var posts atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	dir := t.TempDir()

	snapshot := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{"counters":{"api.http.users.create":4}}`), 0o644))

	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(fmt.Sprintf(`
log_level: error
elasticsearch:
  host: %s
  port: %s
  batch_timeout: 10ms
`, u.Hostname(), u.Port())), 0o644))

	_, err = execute(t, "flush", "--config", config, "--snapshot", snapshot)
	require.NoError(t, err)
	assert.Equal(t, int64(1), posts.Load())
}

func TestFlushCmd_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	dir := t.TempDir()

	snapshot := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{"counters":{"api.http.users.create":4}}`), 0o644))

	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(fmt.Sprintf(`
log_level: panic
snapshot_path: %s
elasticsearch:
  host: %s
  port: %s
  batch_timeout: 10ms
`, snapshot, u.Hostname(), u.Port())), 0o644))

	_, err = execute(t, "flush", "--config", config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_error")
}
