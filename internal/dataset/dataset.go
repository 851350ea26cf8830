// Package dataset combines flattened CSVs from many runs into one
// deduplicated, chronologically ordered dataset.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/statsports/internal/export"
	"github.com/raphaelgruber/statsports/internal/models"
)

// ErrNoRunFiles is returned when no run CSV could be found or loaded.
var ErrNoRunFiles = errors.New("no run csv files")

// SourceColumn records which run a row came from.
const SourceColumn = "source_run"

// keyColumns identify a row across runs.
var keyColumns = []string{"session_date", "drill_id", "player_custom_id"}

// playerColumns are searched by FilterPlayer.
var playerColumns = []string{"player_display_name", "player_first_name", "player_last_name"}

// RunFile is one final CSV found in a run directory.
type RunFile struct {
	Path    string
	RunDir  string
	ModTime time.Time
}

// FindRunFiles returns every <runsDir>/*/statsports_*.csv, compressed or
// not, ordered by run directory name.
func FindRunFiles(runsDir string) ([]RunFile, error) {
	matches, err := filepath.Glob(filepath.Join(runsDir, "*", "statsports_*.csv*"))
	if err != nil {
		return nil, fmt.Errorf("glob run files: %w", err)
	}
	var files []RunFile
	for _, m := range matches {
		if !strings.HasSuffix(export.TrimCompressionExt(m), ".csv") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, RunFile{Path: m, RunDir: filepath.Base(filepath.Dir(m)), ModTime: info.ModTime()})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoRunFiles, runsDir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Newest returns the most recently modified file.
func Newest(files []RunFile) RunFile {
	newest := files[0]
	for _, f := range files[1:] {
		if f.ModTime.After(newest.ModTime) {
			newest = f
		}
	}
	return newest
}

// LoadRuns concatenates the given files, tagging each row with its run.
// Files that fail to load are logged and skipped.
func LoadRuns(files []RunFile, logger *slog.Logger) (*models.Table, error) {
	if logger == nil {
		logger = slog.Default()
	}
	combined := &models.Table{}
	loaded := 0
	for _, f := range files {
		t, err := export.ReadCSV(f.Path)
		if err != nil {
			logger.Warn("skipping unreadable run csv", "path", f.Path, "error", err)
			continue
		}
		loaded++
		logger.Info("loaded run csv", "run_dir", f.RunDir, "rows", t.Len())
		tagSource(t, f.RunDir)
		appendTable(combined, t)
	}
	if loaded == 0 {
		return nil, ErrNoRunFiles
	}
	return combined, nil
}

// Merge appends incoming to existing and removes duplicates, keeping the
// first occurrence. Rows are then ordered by session_date when present.
// It returns the merged table and the number of rows removed.
func Merge(existing, incoming *models.Table) (*models.Table, int) {
	merged := &models.Table{}
	appendTable(merged, existing)
	appendTable(merged, incoming)
	deduped, removed := Dedupe(merged)
	SortByDate(deduped)
	return deduped, removed
}

// Dedupe keeps the first row per (session_date, drill_id, player_custom_id),
// restricted to whichever of those columns exist. Without any key column,
// whole rows are compared.
func Dedupe(t *models.Table) (*models.Table, int) {
	var keys []string
	for _, c := range keyColumns {
		if t.HasColumn(c) {
			keys = append(keys, c)
		}
	}
	if len(keys) == 0 {
		keys = t.Columns
	}

	out := &models.Table{Columns: append([]string(nil), t.Columns...)}
	seen := make(map[string]struct{}, t.Len())
	for _, row := range t.Rows {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = row[k]
		}
		key := strings.Join(parts, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, t.Len() - out.Len()
}

// SortByDate orders rows by session_date, keeping the relative order of
// equal dates. Tables without the column are left untouched.
func SortByDate(t *models.Table) {
	if !t.HasColumn("session_date") {
		return
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i]["session_date"] < t.Rows[j]["session_date"]
	})
}

// FilterPlayer keeps rows whose display, first or last name contains name,
// ignoring case. Without any name column the table is returned unchanged.
func FilterPlayer(t *models.Table, name string) *models.Table {
	var cols []string
	for _, c := range playerColumns {
		if t.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 || name == "" {
		return t
	}
	needle := strings.ToLower(name)
	out := &models.Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows {
		for _, c := range cols {
			if strings.Contains(strings.ToLower(row[c]), needle) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out
}

// Players lists distinct non-empty display names in sorted order.
func Players(t *models.Table) []string {
	set := map[string]struct{}{}
	for _, row := range t.Rows {
		if p := row["player_display_name"]; p != "" {
			set[p] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for p := range set {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// SourceCounts returns the number of rows per source_run value.
func SourceCounts(t *models.Table) map[string]int {
	counts := map[string]int{}
	if !t.HasColumn(SourceColumn) {
		return counts
	}
	for _, row := range t.Rows {
		counts[row[SourceColumn]]++
	}
	return counts
}

func tagSource(t *models.Table, source string) {
	t.AddColumn(SourceColumn)
	for _, row := range t.Rows {
		row[SourceColumn] = source
	}
}

// appendTable adds src's columns and rows to dst.
func appendTable(dst, src *models.Table) {
	if src == nil {
		return
	}
	for _, c := range src.Columns {
		dst.AddColumn(c)
	}
	dst.Rows = append(dst.Rows, src.Rows...)
}
