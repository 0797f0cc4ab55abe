// Package bulk builds documents from metric snapshots and assembles them
// into newline-delimited bulk write requests.
package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// TypeNames maps document categories to the type named in action headers.
type TypeNames struct {
	Counter    string
	Timer      string
	TimerStats string
}

// For returns the type name for a category.
func (t TypeNames) For(c Category) string {
	switch c {
	case CategoryCounter:
		return t.Counter
	case CategoryTimer:
		return t.Timer
	case CategoryTimerStats:
		return t.TimerStats
	default:
		return string(c)
	}
}

// DefaultTypeNames names each type after its category.
func DefaultTypeNames() TypeNames {
	return TypeNames{
		Counter:    string(CategoryCounter),
		Timer:      string(CategoryTimer),
		TimerStats: string(CategoryTimerStats),
	}
}

type actionHeader struct {
	Index actionMeta `json:"index"`
}

type actionMeta struct {
	Index string `json:"_index"`
	Type  string `json:"_type"`
}

// Request is one flush cycle's bulk write. All documents share the index
// and timestamp. Its completion is signalled once delivery is classified.
type Request struct {
	Index     string
	Timestamp int64
	Types     TypeNames
	Documents []Document

	done   chan struct{}
	once   sync.Once
	result Result
}

// NewRequest creates a pending request.
func NewRequest(idx string, ts time.Time, types TypeNames, docs []Document) *Request {
	return &Request{
		Index:     idx,
		Timestamp: Timestamp(ts),
		Types:     types,
		Documents: docs,
		done:      make(chan struct{}),
	}
}

// Len returns the number of documents in the request.
func (r *Request) Len() int {
	return len(r.Documents)
}

// Counts returns the number of documents per category.
func (r *Request) Counts() map[Category]int {
	counts := make(map[Category]int, 3)
	for _, d := range r.Documents {
		counts[d.Category]++
	}

	return counts
}

// Payload encodes the request as an NDJSON bulk body: one action header
// line followed by one document line per document, each newline terminated.
func (r *Request) Payload() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(r.Documents) * 192)

	// json.Encoder terminates every value with a newline.
	enc := json.NewEncoder(&buf)

	for i, doc := range r.Documents {
		header := actionHeader{Index: actionMeta{
			Index: r.Index,
			Type:  r.Types.For(doc.Category),
		}}

		if err := enc.Encode(header); err != nil {
			return nil, fmt.Errorf("encoding action header %d: %w", i, err)
		}

		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding %s document %d: %w", doc.Category, i, err)
		}
	}

	return buf.Bytes(), nil
}

// Complete records the delivery result and releases waiters.
// Only the first call has any effect.
func (r *Request) Complete(res Result) {
	r.once.Do(func() {
		r.result = res
		if r.done != nil {
			close(r.done)
		}
	})
}

// Done is closed once the request's delivery has been classified.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request completes or ctx ends.
func (r *Request) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the delivery result. It is only meaningful after Done.
func (r *Request) Result() Result {
	select {
	case <-r.done:
		return r.result
	default:
		return Result{Outcome: OutcomePending}
	}
}
