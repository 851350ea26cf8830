// Package export turns extracted sessions into the run's final artifacts:
// JSON snapshots and a flat CSV with one row per session player drill.
package export

import (
	"sort"
	"strings"

	"github.com/raphaelgruber/statsports/internal/models"
)

// Fixed CSV columns, in output order.
var baseColumns = []string{
	"session_date",
	"session_start_time",
	"session_end_time",
	"session_type",
	"squad_id",
	"player_id",
	"player_display_name",
	"player_first_name",
	"player_last_name",
	"player_custom_id",
	"player_squad",
	"player_gender",
	"player_dob",
	"drill_id",
	"drill_name",
	"drill_start_time",
	"drill_end_time",
}

// Flatten builds one row per (session, player, drill). Player metadata from
// players, keyed by session date, overrides the session's own playerDetails
// when customPlayerId matches. KPI columns follow the fixed columns in order
// of first appearance; within a drill they are ordered by name.
func Flatten(sessions []models.Session, players models.PlayersByDate) *models.Table {
	table := &models.Table{}
	for _, c := range baseColumns {
		table.AddColumn(c)
	}

	for _, s := range sessions {
		details := s.Details()
		date := models.String(details, "sessionDate")
		lookup := playerLookup(players, date)

		for _, sp := range s.Players() {
			player := enrich(models.Object(sp, "playerDetails"), lookup)

			for _, drill := range models.Objects(sp, "drills") {
				row := map[string]string{
					"session_date":        date,
					"session_start_time":  models.Text(details["startTime"]),
					"session_end_time":    models.Text(details["endTime"]),
					"session_type":        models.Text(details["sessionType"]),
					"squad_id":            models.Text(details["squadId"]),
					"player_id":           models.Text(sp["id"]),
					"player_display_name": models.Text(player["displayName"]),
					"player_first_name":   models.Text(player["firstName"]),
					"player_last_name":    models.Text(player["lastName"]),
					"player_custom_id":    models.Text(player["customPlayerId"]),
					"player_squad":        models.Text(player["activeSquadName"]),
					"player_gender":       models.Text(player["gender"]),
					"player_dob":          models.Text(player["dateOfBirth"]),
					"drill_id":            models.Text(drill["id"]),
					"drill_name":          models.Text(drill["drillName"]),
					"drill_start_time":    models.Text(drill["startTime"]),
					"drill_end_time":      models.Text(drill["endTime"]),
				}
				order := append([]string(nil), baseColumns...)

				kpi := models.Object(drill, "drillKpi")
				for _, name := range sortedKeys(kpi) {
					if name == "customMetrics" {
						continue
					}
					col := "kpi_" + name
					row[col] = models.Text(kpi[name])
					order = append(order, col)
				}
				custom := models.Object(kpi, "customMetrics")
				for _, name := range sortedKeys(custom) {
					col := "custom_" + SafeMetricName(name)
					row[col] = models.Text(custom[name])
					order = append(order, col)
				}
				table.Append(row, order)
			}
		}
	}
	return table
}

// SafeMetricName turns a custom metric label into a column suffix:
// spaces become underscores, parentheses are dropped, letters are lowered.
func SafeMetricName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.NewReplacer("(", "", ")", "").Replace(name)
	return strings.ToLower(name)
}

func playerLookup(players models.PlayersByDate, sessionDate string) map[string]map[string]any {
	list, ok := players[sessionDate]
	if !ok && len(sessionDate) >= len(models.DateLayout) {
		list = players[sessionDate[:len(models.DateLayout)]+"T00:00:00Z"]
	}
	lookup := make(map[string]map[string]any, len(list))
	for _, p := range list {
		if id := p.CustomID(); id != "" {
			lookup[id] = p.Fields()
		}
	}
	return lookup
}

// enrich overlays matching player details onto the session's own copy.
func enrich(player map[string]any, lookup map[string]map[string]any) map[string]any {
	id := models.String(player, "customPlayerId")
	extra, ok := lookup[id]
	if id == "" || !ok {
		return player
	}
	merged := make(map[string]any, len(player)+len(extra))
	for k, v := range player {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
