// Package backend turns flush snapshots into Elasticsearch bulk requests
// and tracks delivery status.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/statsd-elastic/internal/bulk"
	"github.com/ethpandaops/statsd-elastic/internal/export"
	httpexport "github.com/ethpandaops/statsd-elastic/internal/export/http"
	"github.com/ethpandaops/statsd-elastic/internal/index"
	"github.com/ethpandaops/statsd-elastic/internal/metric"
)

// ErrQueueFull is recorded on requests the dispatch queue refused.
var ErrQueueFull = errors.New("bulk queue full")

// Backend is the Elasticsearch flush backend.
type Backend struct {
	log      logrus.FieldLogger
	cfg      Config
	types    bulk.TypeNames
	builder  *bulk.Builder
	resolver index.Resolver
	exporter *httpexport.Exporter
	proc     *processor.BatchItemProcessor[bulk.Request]
	health   *export.HealthMetrics
	status   *Status
	now      func() time.Time

	cancel context.CancelFunc
}

// New creates a backend. health may be nil. startup seeds the status markers.
func New(
	log logrus.FieldLogger,
	cfg Config,
	health *export.HealthMetrics,
	startup time.Time,
) (*Backend, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log = log.WithField("component", "backend")

	exporter, err := httpexport.NewExporter(log, cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}

	proc, err := httpexport.NewProcessor(log, exporter, "elasticsearch_bulk")
	if err != nil {
		return nil, err
	}

	b := &Backend{
		log:      log,
		cfg:      cfg,
		types:    cfg.TypeNames(),
		builder:  bulk.NewBuilder(cfg.ExcludedGroups),
		resolver: index.NewResolver(cfg.IndexPrefix, cfg.IndexTimestamp),
		exporter: exporter,
		proc:     proc,
		health:   health,
		status:   NewStatus(startup),
		now:      time.Now,
	}

	exporter.OnResult(b.observe)

	return b, nil
}

// Start begins dispatching queued requests.
func (b *Backend) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	b.proc.Start(ctx)

	b.log.WithFields(logrus.Fields{
		"endpoint": b.cfg.Transport.BaseURL(),
		"prefix":   b.cfg.IndexPrefix,
		"interval": b.cfg.IndexTimestamp,
	}).Info("Elasticsearch backend started")

	return nil
}

// Stop drains queued requests and releases connections.
func (b *Backend) Stop() error {
	if b.cancel == nil {
		return nil
	}

	if err := b.proc.Shutdown(context.Background()); err != nil {
		b.log.WithError(err).Error("Bulk processor shutdown failed")
	}

	b.cancel()

	return b.exporter.Shutdown(context.Background())
}

// Status returns the backend's status markers.
func (b *Backend) Status() *Status {
	return b.status
}

// Flush records the cycle, builds the cycle's bulk request and queues it
// for delivery. It never blocks on the network; callers that need the
// outcome wait on the returned request.
func (b *Backend) Flush(ts time.Time, snap metric.Snapshot) *bulk.Request {
	b.status.MarkFlush(ts)

	docs := b.builder.Build(ts, snap)
	req := bulk.NewRequest(b.resolver.Resolve(ts), ts, b.types, docs)

	if b.health != nil {
		b.health.FlushesTotal.Inc()
		b.health.LastFlushTimestamp.Set(float64(ts.Unix()))

		for category, n := range req.Counts() {
			b.health.DocumentsBuilt.WithLabelValues(string(category)).Add(float64(n))
		}
	}

	if req.Len() == 0 {
		res := bulk.Result{Outcome: bulk.OutcomeSkipped}
		b.observe(req, res)
		req.Complete(res)

		return req
	}

	if err := b.proc.Write(context.Background(), []*bulk.Request{req}); err != nil {
		b.log.WithError(err).
			WithField("index", req.Index).
			Error("Queueing bulk request failed, no stats flushed")

		res := bulk.Result{
			Outcome: bulk.OutcomeDropped,
			Err:     fmt.Errorf("%w: %w", ErrQueueFull, err),
		}

		if b.health != nil {
			b.health.BulkQueueDropped.Inc()
		}

		b.observe(req, res)
		req.Complete(res)

		return req
	}

	b.log.WithFields(logrus.Fields{
		"index":     req.Index,
		"documents": req.Len(),
	}).Debug("Queued bulk request")

	return req
}

// CollectStatus reports last_flush and last_exception.
func (b *Backend) CollectStatus(write func(source, name string, value int64)) {
	b.status.Collect(write)
}

// observe runs for every finished request, on dispatch workers as well as
// the flush caller.
func (b *Backend) observe(req *bulk.Request, res bulk.Result) {
	if res.Outcome.Failed() {
		b.status.MarkException(b.now())
	}

	if b.health == nil {
		return
	}

	b.health.BulkRequests.WithLabelValues(string(res.Outcome)).Inc()

	if res.ItemFailures > 0 {
		b.health.BulkItemFailures.Add(float64(res.ItemFailures))
	}

	if res.Duration > 0 {
		b.health.BulkRequestDuration.Observe(res.Duration.Seconds())
	}

	if res.Bytes > 0 {
		b.health.BulkPayloadBytes.Observe(float64(res.Bytes))
	}
}
