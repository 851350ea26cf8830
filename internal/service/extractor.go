package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/statsports/internal/client"
	"github.com/raphaelgruber/statsports/internal/config"
	"github.com/raphaelgruber/statsports/internal/metrics"
	"github.com/raphaelgruber/statsports/internal/models"
)

// SessionSource is the remote API as seen by the engine.
type SessionSource interface {
	FetchSessions(ctx context.Context, start, end time.Time) ([]models.Session, error)
	FetchPlayerDetails(ctx context.Context, sessionDate string) ([]models.Player, error)
}

// DayState is the terminal state of one day's extraction.
type DayState string

const (
	StateSuccess DayState = "success"
	StateEmpty   DayState = "empty"
	StateNoData  DayState = "no_data"
	StateHourly  DayState = "hourly"
)

// Outcome is the result of extracting one day.
type Outcome struct {
	State          DayState
	Sessions       []models.Session
	HourlyRequests int
	FailedHours    int
	Duplicates     int
}

// Extractor runs the full-day, probe, hourly fallback for a single day.
type Extractor struct {
	source         SessionSource
	requestTimeout time.Duration
	probeTimeout   time.Duration
	hourPause      time.Duration
	metrics        *metrics.Collector
	logger         *slog.Logger

	// sleep pauses between hourly requests; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExtractor creates an extractor using the timeouts and pauses in cfg.
// collector may be nil.
func NewExtractor(source SessionSource, cfg config.Config, collector *metrics.Collector, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		source:         source,
		requestTimeout: cfg.RequestTimeout,
		probeTimeout:   cfg.ProbeTimeout,
		hourPause:      cfg.HourPause,
		metrics:        collector,
		logger:         logger,
		sleep:          sleepContext,
	}
}

// ExtractDay fetches all sessions for day. It never returns an error: a day
// whose requests all fail is reported as StateNoData with no sessions.
func (e *Extractor) ExtractDay(ctx context.Context, day Period) Outcome {
	date := day.Date()

	sessions, err := e.fetch(ctx, metrics.OpFullDay, e.requestTimeout, day)
	if err == nil {
		if len(sessions) == 0 {
			e.logger.Info("no sessions", "date", date)
			return Outcome{State: StateEmpty, Sessions: []models.Session{}}
		}
		return e.finish(date, StateSuccess, sessions, 0, 0)
	}
	e.logger.Warn("full day request failed, probing", "date", date, "error", err)

	probe, err := e.fetch(ctx, metrics.OpProbe, e.probeTimeout, day)
	if err != nil || len(probe) == 0 {
		e.logger.Info("probe found no data, skipping day", "date", date, "error", err)
		return Outcome{State: StateNoData, Sessions: []models.Session{}}
	}

	e.logger.Info("probe found data, sweeping hours", "date", date)
	dayRange, _ := NewDateRange(day.Start, day.End)
	hours := SplitRange(dayRange, Hour)

	var collected []models.Session
	failed := 0
	for i, hour := range hours {
		got, err := e.fetch(ctx, metrics.OpHourly, e.requestTimeout, hour)
		if err != nil {
			failed++
			e.logger.Warn("hour failed", "date", date, "hour", hour.Start.Format("15:04"), "error", err)
		} else {
			collected = append(collected, got...)
		}
		if i < len(hours)-1 && e.hourPause > 0 {
			// A started sweep always finishes; a cut pause only shortens it.
			if err := e.sleep(ctx, e.hourPause); err != nil {
				e.logger.Debug("hour pause cut short", "date", date, "error", err)
			}
		}
	}
	return e.finish(date, StateHourly, collected, len(hours), failed)
}

func (e *Extractor) finish(date string, state DayState, sessions []models.Session, hourly, failed int) Outcome {
	unique, removed := DedupeSessions(sessions)
	e.logger.Info("day extracted", "date", date, "state", string(state),
		"sessions", len(unique), "duplicates", removed, "failed_hours", failed)
	return Outcome{
		State:          state,
		Sessions:       unique,
		HourlyRequests: hourly,
		FailedHours:    failed,
		Duplicates:     removed,
	}
}

// fetch issues one request whose attempts are each limited to timeout.
func (e *Extractor) fetch(ctx context.Context, op string, timeout time.Duration, p Period) ([]models.Session, error) {
	if timeout > 0 {
		ctx = client.WithAttemptTimeout(ctx, timeout)
	}
	start := time.Now()
	sessions, err := e.source.FetchSessions(ctx, p.Start, p.End)
	e.metrics.RecordTiming(op, time.Since(start), err != nil)
	return sessions, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
