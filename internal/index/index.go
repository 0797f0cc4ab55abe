// Package index resolves the time-partitioned index a flush cycle writes to.
package index

import (
	"fmt"
	"strings"
	"time"
)

// Granularity controls the date suffix appended to the index prefix.
type Granularity string

// Supported granularities. Anything else behaves like GranularityNone,
// which still carries the year.
const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityNone  Granularity = "none"
)

// ParseGranularity maps a configured value onto a Granularity.
// Unrecognised values resolve to GranularityNone.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case GranularityDay:
		return GranularityDay
	case GranularityMonth:
		return GranularityMonth
	default:
		return GranularityNone
	}
}

// Name returns the index for the given instant, read in UTC:
// prefix-YYYY, prefix-YYYY.MM or prefix-YYYY.MM.DD.
func Name(prefix string, g Granularity, at time.Time) string {
	at = at.UTC()

	var b strings.Builder

	b.Grow(len(prefix) + len("-2006.01.02"))
	fmt.Fprintf(&b, "%s-%04d", prefix, at.Year())

	if g == GranularityMonth || g == GranularityDay {
		fmt.Fprintf(&b, ".%02d", int(at.Month()))
	}

	if g == GranularityDay {
		fmt.Fprintf(&b, ".%02d", at.Day())
	}

	return b.String()
}

// Resolver binds a prefix and granularity.
type Resolver struct {
	Prefix      string
	Granularity Granularity
}

// NewResolver creates a Resolver from configured values.
func NewResolver(prefix, granularity string) Resolver {
	return Resolver{
		Prefix:      prefix,
		Granularity: ParseGranularity(granularity),
	}
}

// Resolve returns the index name for the given instant.
func (r Resolver) Resolve(at time.Time) string {
	return Name(r.Prefix, r.Granularity, at)
}
