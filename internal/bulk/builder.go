package bulk

import (
	"time"

	"github.com/ethpandaops/statsd-elastic/internal/metric"
)

// DefaultExcludedGroups are statsd's own bookkeeping counters, never exported.
var DefaultExcludedGroups = []string{"packets_received", "bad_lines_seen"}

// Builder converts metric snapshots into documents.
type Builder struct {
	excluded map[string]struct{}
}

// NewBuilder creates a Builder. Counters whose group is in excludedGroups
// are skipped. A nil slice selects DefaultExcludedGroups.
func NewBuilder(excludedGroups []string) *Builder {
	if excludedGroups == nil {
		excludedGroups = DefaultExcludedGroups
	}

	excluded := make(map[string]struct{}, len(excludedGroups))
	for _, g := range excludedGroups {
		excluded[g] = struct{}{}
	}

	return &Builder{excluded: excluded}
}

// Timestamp converts a flush time to the document timestamp: whole seconds
// times 1000.
func Timestamp(ts time.Time) int64 {
	return ts.Unix() * 1000
}

// Build returns the documents for one flush cycle. Counters come first,
// then timer samples, then timer aggregates, each in metric name order.
// The snapshot is not modified.
func (b *Builder) Build(ts time.Time, snap metric.Snapshot) []Document {
	stamp := Timestamp(ts)
	docs := make([]Document, 0, b.estimate(snap))

	for _, name := range snap.CounterNames() {
		key := metric.ParseKey(name)
		if _, skip := b.excluded[key.Group]; skip {
			continue
		}

		docs = append(docs, Document{
			Category:  CategoryCounter,
			Key:       key,
			Value:     snap.Counters[name],
			Timestamp: stamp,
		})
	}

	for _, name := range snap.TimerNames() {
		key := metric.ParseKey(name)

		for _, sample := range snap.Timers[name] {
			docs = append(docs, Document{
				Category:  CategoryTimer,
				Key:       key,
				Value:     sample,
				Timestamp: stamp,
			})
		}
	}

	for _, name := range snap.TimerDataNames() {
		docs = append(docs, Document{
			Category:  CategoryTimerStats,
			Key:       metric.ParseKey(name),
			Timestamp: stamp,
			Stats:     flattenStats(snap.TimerData[name]),
		})
	}

	return docs
}

func (b *Builder) estimate(snap metric.Snapshot) int {
	n := len(snap.Counters) + len(snap.TimerData)
	for _, samples := range snap.Timers {
		n += len(samples)
	}

	return n
}

// flattenStats copies an aggregate, lifting nested histogram entries to the
// top level and dropping the histogram container.
func flattenStats(agg map[string]any) map[string]any {
	out := make(map[string]any, len(agg))

	for k, v := range agg {
		if k == metric.HistogramField {
			continue
		}

		out[k] = v
	}

	switch hist := agg[metric.HistogramField].(type) {
	case map[string]any:
		for k, v := range hist {
			out[k] = v
		}
	case map[string]float64:
		for k, v := range hist {
			out[k] = v
		}
	}

	return out
}
