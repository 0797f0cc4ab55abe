package bulk

import (
	"encoding/json"

	"github.com/ethpandaops/statsd-elastic/internal/metric"
)

// Category tags the kind of metric a document was built from.
type Category string

// Document categories.
const (
	CategoryCounter    Category = "counter"
	CategoryTimer      Category = "timer"
	CategoryTimerStats Category = "timer_stats"
)

// TimestampField carries the flush time in epoch milliseconds.
const TimestampField = "@timestamp"

// Document is a single record destined for the bulk body.
type Document struct {
	Category  Category
	Key       metric.Key
	Timestamp int64

	// Value is set for counter and timer documents.
	Value float64

	// Stats holds the flattened aggregate fields of a timer_stats
	// document. Key fields and timestamp are merged in on encode.
	Stats map[string]any
}

// scalarJSON is the wire form of counter and timer documents.
type scalarJSON struct {
	Namespace string  `json:"ns"`
	Group     string  `json:"grp"`
	Target    string  `json:"tgt"`
	Action    string  `json:"act"`
	Value     float64 `json:"val"`
	Timestamp int64   `json:"@timestamp"`
}

// Fields returns the full field set of the document as encoded.
func (d Document) Fields() map[string]any {
	if d.Category != CategoryTimerStats {
		fields := d.Key.Fields()
		fields["val"] = d.Value
		fields[TimestampField] = d.Timestamp

		return fields
	}

	fields := make(map[string]any, len(d.Stats)+5)
	for k, v := range d.Stats {
		fields[k] = v
	}

	for k, v := range d.Key.Fields() {
		fields[k] = v
	}

	fields[TimestampField] = d.Timestamp

	return fields
}

// MarshalJSON encodes the document body. Numeric fields stay JSON numbers.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Category == CategoryTimerStats {
		return json.Marshal(d.Fields())
	}

	return json.Marshal(scalarJSON{
		Namespace: d.Key.Namespace,
		Group:     d.Key.Group,
		Target:    d.Key.Target,
		Action:    d.Key.Action,
		Value:     d.Value,
		Timestamp: d.Timestamp,
	})
}
