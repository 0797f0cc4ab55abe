package index

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	at := time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		granularity string
		want        string
	}{
		{granularity: "day", want: "statsd-2024.03.05"},
		{granularity: "month", want: "statsd-2024.03"},
		{granularity: "year", want: "statsd-2024"},
		{granularity: "none", want: "statsd-2024"},
		{granularity: "", want: "statsd-2024"},
		{granularity: "hourly", want: "statsd-2024"},
	}

	for _, tt := range tests {
		t.Run(tt.granularity, func(t *testing.T) {
			assert.Equal(t, tt.want, Name("statsd", ParseGranularity(tt.granularity), at))
		})
	}
}

func TestName_UsesUTC(t *testing.T) {
	// 2024-03-05 20:30 in UTC-05:00 is already 2024-03-06 in UTC.
	loc := time.FixedZone("EST", -5*60*60)
	at := time.Date(2024, 3, 5, 20, 30, 0, 0, loc)

	assert.Equal(t, "statsd-2024.03.06", Name("statsd", GranularityDay, at))
}

func TestName_YearBoundary(t *testing.T) {
	at := time.Date(2023, 12, 31, 23, 59, 59, 999, time.UTC)

	assert.Equal(t, "metrics-2023.12.31", Name("metrics", GranularityDay, at))
	assert.Equal(t, "metrics-2024.01.01", Name("metrics", GranularityDay, at.Add(time.Nanosecond)))
}

func TestParseGranularity(t *testing.T) {
	assert.Equal(t, GranularityDay, ParseGranularity("day"))
	assert.Equal(t, GranularityDay, ParseGranularity(" Day "))
	assert.Equal(t, GranularityMonth, ParseGranularity("month"))
	assert.Equal(t, GranularityNone, ParseGranularity("week"))
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver("statsd", "month")
	at := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "statsd-2024.11", r.Resolve(at))
}
