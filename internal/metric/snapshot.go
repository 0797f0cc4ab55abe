// Package metric defines the per-cycle metrics snapshot handed over by the
// statsd host and the decomposition of dotted metric names.
package metric

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// HistogramField is the nested aggregate field flattened on export.
const HistogramField = "histogram"

// Snapshot is the set of metrics accumulated over one flush window.
type Snapshot struct {
	// Counters maps a metric name to its value for the window.
	Counters map[string]float64 `json:"counters"`

	// Timers maps a metric name to the raw samples observed.
	Timers map[string][]float64 `json:"timers"`

	// TimerData maps a metric name to precomputed aggregates
	// (mean, upper, count_90, ...) and an optional histogram.
	TimerData map[string]map[string]any `json:"timer_data"`
}

// Len returns the number of metric names in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Counters) + len(s.Timers) + len(s.TimerData)
}

// CounterNames returns counter names in sorted order.
func (s Snapshot) CounterNames() []string {
	return sortedKeys(s.Counters)
}

// TimerNames returns timer names in sorted order.
func (s Snapshot) TimerNames() []string {
	return sortedKeys(s.Timers)
}

// TimerDataNames returns timer aggregate names in sorted order.
func (s Snapshot) TimerDataNames() []string {
	return sortedKeys(s.TimerData)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// DecodeSnapshot reads a JSON snapshot. Numbers inside timer aggregates are
// kept as json.Number so they are re-encoded exactly as received.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot

	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}

	return snap, nil
}

// LoadSnapshot reads a JSON snapshot from a file.
func LoadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer f.Close()

	snap, err := DecodeSnapshot(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	return snap, nil
}
