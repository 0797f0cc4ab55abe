package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/statsd-elastic/internal/bulk"
	"github.com/ethpandaops/statsd-elastic/internal/metric"
)

type failingSource struct{}

func (failingSource) Snapshot(_ context.Context) (metric.Snapshot, error) {
	return metric.Snapshot{}, errors.New("aggregator unavailable")
}

func testConfig(t *testing.T, serverURL string) *Config {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.FlushInterval = 20 * time.Millisecond
	cfg.Health.Addr = "-"
	cfg.Elasticsearch.Transport.Host = u.Hostname()
	cfg.Elasticsearch.Transport.Port = port
	cfg.Elasticsearch.Transport.BatchTimeout = 10 * time.Millisecond

	return cfg
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))

	return m.GetCounter().GetValue()
}

func counterSnapshot() metric.Snapshot {
	return metric.Snapshot{
		Counters: map[string]float64{"api.http.users.create": 1},
	}
}

func TestHost_SchedulerFlushes(t *testing.T) {
	var posts atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log, _ := logtest.NewNullLogger()

	h, err := New(log, testConfig(t, srv.URL), StaticSource(counterSnapshot()))
	require.NoError(t, err)

	require.NoError(t, h.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return posts.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Stop())

	assert.GreaterOrEqual(t, counterValue(t, h.health.FlushesTotal), float64(2))
}

func TestHost_CycleFromFile(t *testing.T) {
	var posts atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"counters": {"api.http.users.create": 4},
		"timers": {"api.db.users.query": [12, 15]}
	}`), 0o644))

	log, _ := logtest.NewNullLogger()

	h, err := New(log, testConfig(t, srv.URL), NewFileSource(path))
	require.NoError(t, err)

	require.NoError(t, h.Backend().Start(context.Background()))
	defer h.Backend().Stop()

	req, err := h.Cycle(context.Background(), time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, req.Len())
	assert.Equal(t, "statsd-2024.03.05", req.Index)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := req.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, bulk.OutcomeAcknowledged, res.Outcome)
	assert.Equal(t, int64(1), posts.Load())
}

func TestHost_SnapshotErrorSkipsCycle(t *testing.T) {
	var posts atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log, _ := logtest.NewNullLogger()

	h, err := New(log, testConfig(t, srv.URL), failingSource{})
	require.NoError(t, err)

	before := h.Backend().Status().LastFlush()

	req, err := h.Cycle(context.Background(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.Nil(t, req)
	assert.Contains(t, err.Error(), "reading snapshot")

	assert.Equal(t, float64(1), counterValue(t, h.health.SnapshotErrors))
	assert.Equal(t, before, h.Backend().Status().LastFlush())
	assert.Equal(t, int64(0), posts.Load())
}

func TestNew_RequiresSource(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	_, err := New(log, DefaultConfig(), nil)
	require.Error(t, err)
}
