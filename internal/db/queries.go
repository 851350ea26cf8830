package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DrillRow is a published row as stored in SurrealDB.
type DrillRow struct {
	ID                *surrealmodels.RecordID `json:"id,omitempty"`
	SessionDate       string                  `json:"session_date"`
	DrillID           string                  `json:"drill_id"`
	PlayerCustomID    string                  `json:"player_custom_id"`
	PlayerDisplayName string                  `json:"player_display_name"`
	SourceRun         string                  `json:"source_run"`
	Metrics           map[string]string       `json:"metrics"`
}

// PublishResult counts the outcome of a publish.
type PublishResult struct {
	Inserted int
	Skipped  int
}

// RunRecord summarises an extraction run for the extraction_run table.
type RunRecord struct {
	RunDir        string
	Checkpoint    models.Checkpoint
	PublishedRows int
}

// RowID derives a stable record key from the row's identity columns,
// falling back to every column when none of them is set.
func RowID(columns []string, row map[string]string) string {
	parts := []string{row["session_date"], row["drill_id"], row["player_custom_id"]}
	if strings.Join(parts, "") == "" {
		parts = parts[:0]
		for _, c := range columns {
			parts = append(parts, c+"="+row[c])
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}

// PublishRows creates one drill_row per table row. Rows whose key already
// exists are left untouched and counted as skipped, so the first published
// version of a row wins.
func (c *Client) PublishRows(ctx context.Context, table *models.Table) (PublishResult, error) {
	var res PublishResult
	sql := `CREATE type::record("drill_row", $id) CONTENT $row RETURN NONE`

	for _, row := range table.Rows {
		metrics := make(map[string]string, len(table.Columns))
		for _, col := range table.Columns {
			if v := row[col]; v != "" {
				metrics[col] = v
			}
		}
		_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
			"id": RowID(table.Columns, row),
			"row": map[string]any{
				"session_date":        row["session_date"],
				"drill_id":            row["drill_id"],
				"player_custom_id":    row["player_custom_id"],
				"player_display_name": row["player_display_name"],
				"source_run":          row["source_run"],
				"metrics":             metrics,
			},
		})
		err = wrapQueryError(err)
		switch {
		case errors.Is(err, ErrRowExists):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("publish row: %w", err)
		default:
			res.Inserted++
		}
	}
	return res, nil
}

// RecordRun upserts the extraction_run entry for a run directory.
func (c *Client) RecordRun(ctx context.Context, run RunRecord) error {
	processed := run.Checkpoint.ProcessedDates
	if processed == nil {
		processed = []string{}
	}
	sql := `
		UPSERT type::record("extraction_run", $id) SET
			range_start = $range_start,
			range_end = $range_end,
			processed_dates = $processed_dates,
			total_sessions = $total_sessions,
			published_rows = (published_rows ?? 0) + $published_rows,
			published = time::now()
		RETURN NONE
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":              run.RunDir,
		"range_start":     run.Checkpoint.RangeStart,
		"range_end":       run.Checkpoint.RangeEnd,
		"processed_dates": processed,
		"total_sessions":  run.Checkpoint.TotalSessions,
		"published_rows":  run.PublishedRows,
	})
	if err != nil {
		return fmt.Errorf("record run: %w", wrapQueryError(err))
	}
	return nil
}

// QueryRowsByPlayer returns published rows for a player custom id ordered by
// session date.
func (c *Client) QueryRowsByPlayer(ctx context.Context, playerCustomID string) ([]DrillRow, error) {
	sql := `SELECT * FROM drill_row WHERE player_custom_id = $player ORDER BY session_date`
	results, err := surrealdb.Query[[]DrillRow](ctx, c.db, sql, map[string]any{"player": playerCustomID})
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []DrillRow{}, nil
}

// CountRows returns the number of published rows.
func (c *Client) CountRows(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `SELECT count() AS count FROM drill_row GROUP ALL`, nil)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
