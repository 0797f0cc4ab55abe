// Package http provides the Elasticsearch bulk transport: one POST per flush
// cycle, with the response classified and logged.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/statsd-elastic/internal/bulk"
	"github.com/ethpandaops/statsd-elastic/internal/version"
)

const (
	// maxResponseBytes caps how much of a bulk response is read.
	maxResponseBytes = 32 * 1024 * 1024
	// maxLoggedBody caps response bodies copied into log entries.
	maxLoggedBody = 1024
)

// ResultFunc is called once per delivered request, before its waiters
// are released.
type ResultFunc func(req *bulk.Request, res bulk.Result)

// Exporter implements processor.ItemExporter for Elasticsearch bulk requests.
type Exporter struct {
	cfg        Config
	client     *http.Client
	compressor *Compressor
	log        logrus.FieldLogger
	hooks      []ResultFunc
}

// compile-time check that Exporter implements ItemExporter.
var _ processor.ItemExporter[bulk.Request] = (*Exporter)(nil)

// NewExporter creates a new bulk exporter.
func NewExporter(log logrus.FieldLogger, cfg Config) (*Exporter, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	compressor, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Workers * 2,
		MaxIdleConnsPerHost: cfg.Workers * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   !cfg.IsKeepAlive(),
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed clusters
		},
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.ExportTimeout,
	}

	return &Exporter{
		cfg:        cfg,
		client:     client,
		compressor: compressor,
		log:        log.WithField("component", "bulk_exporter"),
	}, nil
}

// OnResult registers a callback for delivery results.
// Must be called before the exporter is used.
func (e *Exporter) OnResult(fn ResultFunc) {
	e.hooks = append(e.hooks, fn)
}

// ExportItems delivers each request with its own POST. Failures are logged
// and recorded on the request, never returned: a dropped batch is final.
func (e *Exporter) ExportItems(ctx context.Context, items []*bulk.Request) error {
	for _, req := range items {
		if req == nil {
			continue
		}

		e.Send(ctx, req)
	}

	return nil
}

// Send issues a single bulk POST for the request, classifies the outcome
// and completes the request.
func (e *Exporter) Send(ctx context.Context, req *bulk.Request) bulk.Result {
	res := e.send(ctx, req)

	for _, fn := range e.hooks {
		fn(req, res)
	}

	req.Complete(res)

	return res
}

func (e *Exporter) send(ctx context.Context, req *bulk.Request) bulk.Result {
	log := e.log.WithFields(logrus.Fields{
		"index":     req.Index,
		"documents": req.Len(),
	})

	if req.Len() == 0 {
		log.Debug("No documents to flush, skipping bulk request")

		return bulk.Result{Outcome: bulk.OutcomeSkipped}
	}

	payload, err := req.Payload()
	if err != nil {
		log.WithError(err).Error("Encoding bulk payload failed, no stats flushed")

		return bulk.Result{Outcome: bulk.OutcomeDropped, Err: err}
	}

	if e.cfg.DebugPayload {
		log.WithField("payload", string(payload)).Debug("Bulk payload")
	}

	body, err := e.compressor.Compress(payload)
	if err != nil {
		log.WithError(err).Error("Compressing bulk payload failed, no stats flushed")

		return bulk.Result{Outcome: bulk.OutcomeDropped, Bytes: len(payload), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExportTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BulkURL(req.Index), bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("Creating bulk request failed, no stats flushed")

		return bulk.Result{Outcome: bulk.OutcomeDropped, Bytes: len(payload), Err: err}
	}

	e.setHeaders(httpReq, len(body))

	start := time.Now()

	resp, err := e.client.Do(httpReq)
	if err != nil {
		log.WithError(err).Error("Error with HTTP request, no stats flushed")

		return bulk.Result{
			Outcome:  bulk.OutcomeTransportError,
			Bytes:    len(payload),
			Duration: time.Since(start),
			Err:      fmt.Errorf("sending request: %w", err),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	// Drain anything past the limit to enable connection reuse.
	_, _ = io.Copy(io.Discard, resp.Body)

	res := bulk.Result{
		StatusCode: resp.StatusCode,
		Bytes:      len(payload),
		Duration:   time.Since(start),
	}

	log = log.WithField("status", resp.StatusCode)

	switch {
	case resp.StatusCode >= 500:
		res.Outcome = bulk.OutcomeServerError
		res.Err = fmt.Errorf("unexpected status code: %d", resp.StatusCode)

		log.Errorf("HTTP %d: %s", resp.StatusCode, truncate(respBody, maxLoggedBody))
	case resp.StatusCode >= 400:
		res.Outcome = bulk.OutcomeRejected
		res.Err = fmt.Errorf("unexpected status code: %d", resp.StatusCode)

		log.Warnf("HTTP %d: %s", resp.StatusCode, truncate(respBody, maxLoggedBody))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res.Outcome = bulk.OutcomeAcknowledged

		if readErr != nil {
			log.WithError(readErr).Debug("Reading bulk response failed, item results unknown")

			break
		}

		failed, firstErr := countItemFailures(respBody)
		if failed > 0 {
			res.Outcome = bulk.OutcomePartial
			res.ItemFailures = failed
			res.Err = fmt.Errorf("%d of %d bulk items failed", failed, req.Len())

			log.WithFields(logrus.Fields{
				"failed_items": failed,
				"first_error":  firstErr,
			}).Warn("Bulk request accepted with item failures")

			break
		}

		log.WithFields(logrus.Fields{
			"bytes":    len(payload),
			"duration": res.Duration,
		}).Debug("Flushed stats to Elasticsearch")
	default:
		res.Outcome = bulk.OutcomeRejected
		res.Err = fmt.Errorf("unexpected status code: %d", resp.StatusCode)

		log.Warnf("HTTP %d: unexpected bulk response", resp.StatusCode)
	}

	return res
}

func (e *Exporter) setHeaders(req *http.Request, length int) {
	req.ContentLength = int64(length)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", strconv.Itoa(length))
	req.Header.Set("User-Agent", version.UserAgent())

	if encoding := e.compressor.ContentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	if e.cfg.Username != "" || e.cfg.Password != "" {
		req.SetBasicAuth(e.cfg.Username, e.cfg.Password)
	}

	// Add custom headers.
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// bulkResponse is the subset of the bulk API response inspected for
// per-item failures.
type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// countItemFailures returns the number of failed items in a bulk response
// body and the first failure reason.
func countItemFailures(body []byte) (int, string) {
	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil || !resp.Errors {
		return 0, ""
	}

	var (
		failed   int
		firstErr string
	)

	for _, item := range resp.Items {
		for _, result := range item {
			if len(result.Error) == 0 && result.Status < 300 {
				continue
			}

			failed++

			if firstErr == "" {
				firstErr = truncate(result.Error, maxLoggedBody)
			}
		}
	}

	// errors:true without readable items still means something failed.
	if failed == 0 {
		failed = 1
	}

	return failed, firstErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}

// Shutdown shuts down the exporter.
func (e *Exporter) Shutdown(_ context.Context) error {
	e.client.CloseIdleConnections()

	return nil
}

// NewProcessor creates a BatchItemProcessor that dispatches requests to
// the exporter on a bounded queue.
func NewProcessor(
	log logrus.FieldLogger,
	exporter *Exporter,
	name string,
) (*processor.BatchItemProcessor[bulk.Request], error) {
	cfg := exporter.cfg

	proc, err := processor.NewBatchItemProcessor[bulk.Request](
		exporter,
		name,
		log,
		processor.WithMaxQueueSize(cfg.MaxQueueSize),
		processor.WithBatchTimeout(cfg.BatchTimeout),
		processor.WithExportTimeout(cfg.ExportTimeout),
		processor.WithMaxExportBatchSize(1),
		processor.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processor: %w", err)
	}

	return proc, nil
}
