package backend

import (
	"sync/atomic"
	"time"
)

// StatusSource tags every stat reported by the backend.
const StatusSource = "elasticsearch"

// Status stat names.
const (
	StatLastFlush     = "last_flush"
	StatLastException = "last_exception"
)

// WriteFunc receives one stat per call.
type WriteFunc func(source, name string, value int64)

// Status tracks flush bookkeeping in unix seconds. Delivery results arrive
// on dispatch workers, so both markers are atomics.
type Status struct {
	lastFlush     atomic.Int64
	lastException atomic.Int64
}

// NewStatus creates a Status with both markers at the startup time.
func NewStatus(startup time.Time) *Status {
	s := &Status{}
	s.lastFlush.Store(startup.Unix())
	s.lastException.Store(startup.Unix())

	return s
}

// MarkFlush records a flush cycle invocation.
func (s *Status) MarkFlush(at time.Time) {
	s.lastFlush.Store(at.Unix())
}

// MarkException records a failed delivery.
func (s *Status) MarkException(at time.Time) {
	s.lastException.Store(at.Unix())
}

// LastFlush returns the last flush time.
func (s *Status) LastFlush() time.Time {
	return time.Unix(s.lastFlush.Load(), 0)
}

// LastException returns the last failed delivery time.
func (s *Status) LastException() time.Time {
	return time.Unix(s.lastException.Load(), 0)
}

// Collect invokes write once per tracked stat.
func (s *Status) Collect(write WriteFunc) {
	write(StatusSource, StatLastFlush, s.lastFlush.Load())
	write(StatusSource, StatLastException, s.lastException.Load())
}
