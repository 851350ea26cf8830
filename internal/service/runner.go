package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/statsports/internal/client"
	"github.com/raphaelgruber/statsports/internal/config"
	"github.com/raphaelgruber/statsports/internal/metrics"
	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/raphaelgruber/statsports/internal/store"
)

// RunResult holds everything a run extracted, including days restored from
// an earlier interrupted run.
type RunResult struct {
	RunDir         string
	Range          DateRange
	Sessions       []models.Session
	Players        models.PlayersByDate
	ProcessedDates []string

	Resumed     int
	Skipped     int
	DaysSuccess int
	DaysEmpty   int
	DaysNoData  int
	DaysHourly  int
	FailedHours int
	Duplicates  int
}

// DayReport is passed to a Runner's OnDay callback after each processed day.
type DayReport struct {
	Date      string
	Index     int
	Total     int
	Outcome   Outcome
	Players   int
	Cumulated int
}

// Runner drives a whole extraction run over a date range.
type Runner struct {
	source    SessionSource
	extractor *Extractor
	store     *store.Store
	dayPause  time.Duration
	metrics   *metrics.Collector
	logger    *slog.Logger

	// OnDay, if set, is called after each newly processed day.
	OnDay func(DayReport)

	// sleep pauses between days; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires a runner over source, persisting into st.
func NewRunner(source SessionSource, st *store.Store, cfg config.Config, collector *metrics.Collector, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:    source,
		extractor: NewExtractor(source, cfg, collector, logger),
		store:     st,
		dayPause:  cfg.DayPause,
		metrics:   collector,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Run extracts every day of dr not already recorded as processed in the run
// directory. ctx is checked between days only; a cancelled run returns the
// partial result together with ctx.Err() and can be resumed.
func (r *Runner) Run(ctx context.Context, dr DateRange) (*RunResult, error) {
	start, end := dr.Start(), dr.End()
	state := r.store.Load(start, end)
	if len(state.Processed) == 0 {
		if err := r.store.Initialize(start, end); err != nil {
			r.logger.Warn("initialize run dir failed, continuing in memory", "run_dir", r.store.Dir(), "error", err)
		}
	}

	res := &RunResult{
		RunDir:   r.store.Dir(),
		Range:    dr,
		Sessions: state.Sessions,
		Players:  state.Players,
		Resumed:  len(state.Processed),
	}
	processed := state.Processed
	defer func() { res.ProcessedDates = sortedKeys(processed) }()

	// durable holds the dates whose sessions reached the progress log; only
	// those are checkpointed.
	durable := make(map[string]bool, len(processed))
	for d := range processed {
		durable[d] = true
	}
	durableSessions := len(state.Sessions)

	days := SplitRange(dr, Day)
	r.logger.Info("extraction started", "range", dr.String(), "days", len(days), "already_processed", len(processed))

	for i, day := range days {
		date := day.Date()
		if processed[date] {
			res.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			r.logger.Warn("extraction interrupted", "next_date", date, "processed", len(processed))
			return res, err
		}

		// A started day always completes so it is never half-recorded.
		dayCtx := context.WithoutCancel(ctx)

		outcome := r.extractor.ExtractDay(dayCtx, day)
		res.count(outcome)

		var players []models.Player
		if len(outcome.Sessions) > 0 {
			players = r.fetchPlayers(dayCtx, day)
			res.Players[models.SessionDateKey(day.Start)] = players
		}
		res.Sessions = append(res.Sessions, outcome.Sessions...)

		processed[date] = true
		if err := r.store.AppendDay(date, outcome.Sessions, players); err != nil {
			r.logger.Warn("append progress failed, day left out of checkpoint", "date", date, "error", err)
		} else {
			durable[date] = true
			durableSessions += len(outcome.Sessions)
			if err := r.store.UpdateCheckpoint(start, end, durable, durableSessions); err != nil {
				r.logger.Warn("update checkpoint failed", "date", date, "error", err)
			}
		}

		if r.OnDay != nil {
			r.OnDay(DayReport{
				Date:      date,
				Index:     i + 1,
				Total:     len(days),
				Outcome:   outcome,
				Players:   len(players),
				Cumulated: len(res.Sessions),
			})
		}

		if i < len(days)-1 && r.dayPause > 0 {
			if err := r.sleep(ctx, r.dayPause); err != nil {
				r.logger.Warn("extraction interrupted", "processed", len(processed))
				return res, err
			}
		}
	}

	r.logger.Info("extraction finished", "range", dr.String(), "sessions", len(res.Sessions),
		"processed", len(processed), "hourly_days", res.DaysHourly, "no_data_days", res.DaysNoData)
	return res, nil
}

func (r *Runner) fetchPlayers(ctx context.Context, day Period) []models.Player {
	key := models.SessionDateKey(day.Start)
	if t := r.extractor.requestTimeout; t > 0 {
		ctx = client.WithAttemptTimeout(ctx, t)
	}

	start := time.Now()
	players, err := r.source.FetchPlayerDetails(ctx, key)
	r.metrics.RecordTiming(metrics.OpPlayerDetails, time.Since(start), err != nil)
	if err != nil {
		r.logger.Warn("player details failed", "date", day.Date(), "error", err)
		return []models.Player{}
	}
	return players
}

func (res *RunResult) count(o Outcome) {
	switch o.State {
	case StateSuccess:
		res.DaysSuccess++
	case StateEmpty:
		res.DaysEmpty++
	case StateNoData:
		res.DaysNoData++
	case StateHourly:
		res.DaysHourly++
	}
	res.FailedHours += o.FailedHours
	res.Duplicates += o.Duplicates
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
