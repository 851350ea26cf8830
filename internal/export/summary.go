package export

import "github.com/raphaelgruber/statsports/internal/models"

// Summary describes a flattened dataset.
type Summary struct {
	Rows           int
	Columns        int
	FirstDate      string
	LastDate       string
	UniquePlayers  int
	UniqueSessions int
}

// Summarize computes row counts, the session date span and distinct player
// and session-date counts. Empty values are not counted as distinct.
func Summarize(t *models.Table) Summary {
	s := Summary{Rows: t.Len(), Columns: len(t.Columns)}
	players := map[string]struct{}{}
	dates := map[string]struct{}{}
	for _, row := range t.Rows {
		if p := row["player_display_name"]; p != "" {
			players[p] = struct{}{}
		}
		d := row["session_date"]
		if d == "" {
			continue
		}
		dates[d] = struct{}{}
		if s.FirstDate == "" || d < s.FirstDate {
			s.FirstDate = d
		}
		if d > s.LastDate {
			s.LastDate = d
		}
	}
	s.UniquePlayers = len(players)
	s.UniqueSessions = len(dates)
	return s
}
