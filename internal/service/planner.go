// Package service implements the incremental extraction engine: range
// planning, the per-day fallback state machine, deduplication and the run
// orchestrator.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/statsports/internal/models"
)

// ErrInvalidRange is returned for ranges whose end precedes their start.
var ErrInvalidRange = errors.New("invalid date range")

// Granularity selects the length of planned periods.
type Granularity int

const (
	Day Granularity = iota
	Hour
)

func (g Granularity) String() string {
	if g == Hour {
		return "hour"
	}
	return "day"
}

// DateRange is an inclusive [Start, End] interval. Construct it with
// NewDateRange or ParseDateRange; the zero value is not meaningful.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange validates start <= end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return DateRange{start: start, end: end}, nil
}

// ParseDateRange builds the range covering whole calendar days from
// startDate 00:00:00 to endDate 23:59:59 UTC. Both dates are YYYY-MM-DD.
func ParseDateRange(startDate, endDate string) (DateRange, error) {
	start, err := time.ParseInLocation(models.DateLayout, startDate, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q must be YYYY-MM-DD", ErrInvalidRange, startDate)
	}
	end, err := time.ParseInLocation(models.DateLayout, endDate, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q must be YYYY-MM-DD", ErrInvalidRange, endDate)
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("%w: end date %s before start date %s", ErrInvalidRange, endDate, startDate)
	}
	return NewDateRange(start, endOfDay(end))
}

// Start returns the first instant of the range.
func (r DateRange) Start() time.Time { return r.start }

// End returns the last instant of the range.
func (r DateRange) End() time.Time { return r.end }

func (r DateRange) String() string {
	return r.start.Format(models.DateLayout) + ".." + r.end.Format(models.DateLayout)
}

// Period is one planned sub-range. Adjacent periods satisfy
// next.Start == prev.End + 1s.
type Period struct {
	Start time.Time
	End   time.Time
}

// Date returns the calendar date of the period start.
func (p Period) Date() string {
	return p.Start.Format(models.DateLayout)
}

// SplitRange decomposes r into consecutive periods aligned to calendar day or
// hour boundaries. The first and last periods are clipped to r.
func SplitRange(r DateRange, g Granularity) []Period {
	var periods []Period
	current := r.start
	for !current.After(r.end) {
		boundary := nextBoundary(current, g)
		end := boundary.Add(-time.Second)
		if end.After(r.end) {
			end = r.end
		}
		periods = append(periods, Period{Start: current, End: end})
		current = end.Add(time.Second)
	}
	return periods
}

// nextBoundary returns the first day or hour boundary strictly after t.
func nextBoundary(t time.Time, g Granularity) time.Time {
	if g == Hour {
		return t.Truncate(time.Hour).Add(time.Hour)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
