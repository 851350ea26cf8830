package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRangeDays(t *testing.T) {
	r, err := ParseDateRange("2024-02-27", "2024-03-02")
	require.NoError(t, err)

	periods := SplitRange(r, Day)
	require.Len(t, periods, 5, "leap day included")

	var dates []string
	for _, p := range periods {
		dates = append(dates, p.Date())
		assert.Equal(t, 23*time.Hour+59*time.Minute+59*time.Second, p.End.Sub(p.Start))
	}
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, dates)
	assertGapless(t, r, periods)
}

func TestSplitRangeHours(t *testing.T) {
	r, err := ParseDateRange("2024-03-01", "2024-03-01")
	require.NoError(t, err)

	periods := SplitRange(r, Hour)
	require.Len(t, periods, 24)
	assert.Equal(t, "00:00:00", periods[0].Start.Format("15:04:05"))
	assert.Equal(t, "00:59:59", periods[0].End.Format("15:04:05"))
	assert.Equal(t, "23:00:00", periods[23].Start.Format("15:04:05"))
	assert.Equal(t, "23:59:59", periods[23].End.Format("15:04:05"))
	assertGapless(t, r, periods)
}

func TestSplitRangeClipsPartialBounds(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 5, 15, 0, 0, time.UTC)
	r, err := NewDateRange(start, end)
	require.NoError(t, err)

	days := SplitRange(r, Day)
	require.Len(t, days, 2)
	assert.Equal(t, start, days[0].Start)
	assert.Equal(t, end, days[1].End)
	assertGapless(t, r, days)

	hours := SplitRange(r, Hour)
	require.Len(t, hours, 20)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 59, 59, 0, time.UTC), hours[0].End)
	assertGapless(t, r, hours)
}

func TestSplitRangeSingleInstant(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r, err := NewDateRange(at, at)
	require.NoError(t, err)

	periods := SplitRange(r, Day)
	require.Len(t, periods, 1)
	assert.Equal(t, at, periods[0].Start)
	assert.Equal(t, at, periods[0].End)
}

func TestParseDateRangeErrors(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"end before start", "2024-03-05", "2024-03-01"},
		{"bad start", "03/01/2024", "2024-03-05"},
		{"bad end", "2024-03-01", "2024-13-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDateRange(tt.start, tt.end)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestNewDateRangeRejectsReversed(t *testing.T) {
	now := time.Now()
	_, err := NewDateRange(now, now.Add(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func assertGapless(t *testing.T, r DateRange, periods []Period) {
	t.Helper()
	require.NotEmpty(t, periods)
	assert.Equal(t, r.Start(), periods[0].Start)
	assert.Equal(t, r.End(), periods[len(periods)-1].End)
	for i := 1; i < len(periods); i++ {
		assert.Equal(t, periods[i-1].End.Add(time.Second), periods[i].Start, "period %d", i)
		assert.False(t, periods[i].End.Before(periods[i].Start))
	}
}
