// Package host runs the flush scheduler: it reads a snapshot every
// interval and hands it to the Elasticsearch backend.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/statsd-elastic/internal/backend"
	"github.com/ethpandaops/statsd-elastic/internal/bulk"
	"github.com/ethpandaops/statsd-elastic/internal/export"
)

// Host is the top-level orchestrator for statsd-elastic.
type Host struct {
	log     logrus.FieldLogger
	cfg     *Config
	health  *export.HealthMetrics
	backend *backend.Backend
	source  Source

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a Host reading snapshots from source.
func New(log logrus.FieldLogger, cfg *Config, source Source) (*Host, error) {
	if source == nil {
		return nil, errors.New("snapshot source is required")
	}

	health := export.NewHealthMetrics(log, cfg.Health)

	b, err := backend.New(log, cfg.Elasticsearch, health, time.Now())
	if err != nil {
		return nil, fmt.Errorf("creating backend: %w", err)
	}

	health.SetStatus(b.CollectStatus)

	return &Host{
		log:     log.WithField("component", "host"),
		cfg:     cfg,
		health:  health,
		backend: b,
		source:  source,
	}, nil
}

// Backend returns the flush backend.
func (h *Host) Backend() *backend.Backend {
	return h.backend
}

// Start brings up the health server and backend, then begins ticking.
func (h *Host) Start(ctx context.Context) error {
	ctx, h.cancel = context.WithCancel(ctx)

	if h.cfg.Health.Enabled() {
		if err := h.health.Start(ctx); err != nil {
			return fmt.Errorf("starting health metrics: %w", err)
		}
	}

	if err := h.backend.Start(ctx); err != nil {
		return fmt.Errorf("starting backend: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	h.group = g

	g.Go(func() error {
		h.runScheduler(gctx)

		return nil
	})

	h.log.WithField("interval", h.cfg.FlushInterval).Info("Flush scheduler started")

	return nil
}

// Stop halts the scheduler and drains queued requests.
func (h *Host) Stop() error {
	if h.cancel != nil {
		h.cancel()
	}

	if h.group != nil {
		if err := h.group.Wait(); err != nil {
			h.log.WithError(err).Error("Scheduler exited with error")
		}
	}

	if err := h.backend.Stop(); err != nil {
		h.log.WithError(err).Error("Error stopping backend")
	}

	if h.health != nil {
		h.health.Stop()
	}

	return nil
}

func (h *Host) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ts := <-ticker.C:
			if _, err := h.Cycle(ctx, ts); err != nil {
				h.log.WithError(err).Warn("Skipping flush cycle")
			}
		}
	}
}

// Cycle reads one snapshot and flushes it with timestamp ts. A snapshot
// read failure skips the cycle without touching backend status.
func (h *Host) Cycle(ctx context.Context, ts time.Time) (*bulk.Request, error) {
	snap, err := h.source.Snapshot(ctx)
	if err != nil {
		h.health.SnapshotErrors.Inc()

		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return h.backend.Flush(ts, snap), nil
}
