package models

import "time"

// DateLayout is the calendar-date format used for checkpoint ranges and
// processed dates.
const DateLayout = "2006-01-02"

// Checkpoint is the durable progress summary of a run. It is authoritative
// for which dates are processed; the progress logs are not.
type Checkpoint struct {
	RangeStart     string   `json:"range_start"`
	RangeEnd       string   `json:"range_end"`
	ProcessedDates []string `json:"processed_dates"`
	TotalSessions  int      `json:"total_sessions"`
	LastUpdated    string   `json:"last_updated"`
}

// Matches reports whether the checkpoint was recorded for the same inclusive
// range of calendar dates.
func (c Checkpoint) Matches(start, end time.Time) bool {
	return c.RangeStart == start.Format(DateLayout) && c.RangeEnd == end.Format(DateLayout)
}

// SessionsEntry is one line of progress_sessions.jsonl.
type SessionsEntry struct {
	Date     string    `json:"date"`
	Sessions []Session `json:"sessions"`
}

// PlayersEntry is one line of progress_players.jsonl.
type PlayersEntry struct {
	Date    string   `json:"date"`
	Players []Player `json:"players"`
}
