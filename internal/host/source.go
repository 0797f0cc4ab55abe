package host

import (
	"context"

	"github.com/ethpandaops/statsd-elastic/internal/metric"
)

// Source supplies the aggregated snapshot for a flush cycle.
type Source interface {
	Snapshot(ctx context.Context) (metric.Snapshot, error)
}

// FileSource reads a JSON snapshot written by an aggregator.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Snapshot(_ context.Context) (metric.Snapshot, error) {
	return metric.LoadSnapshot(s.Path)
}

// StaticSource returns the same snapshot every cycle.
type StaticSource metric.Snapshot

func (s StaticSource) Snapshot(_ context.Context) (metric.Snapshot, error) {
	return metric.Snapshot(s), nil
}
