package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/raphaelgruber/statsports/internal/service"
	"github.com/raphaelgruber/statsports/internal/store"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-dir]",
	Short: "List or inspect run directories",
	Long: `List all run directories under the runs dir with their checkpoint
progress, or inspect a single run.

Examples:
  statsports runs
  statsports runs runs/20240401_091500_1a2b3c4d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

// runInfo is the checkpoint-derived status of one run directory.
type runInfo struct {
	Dir        string
	Checkpoint models.Checkpoint
	Days       int
	Finished   bool
	Err        error
}

func (r runInfo) status() string {
	switch {
	case r.Err != nil:
		return "unreadable"
	case r.Finished:
		return "complete"
	case len(r.Checkpoint.ProcessedDates) >= r.Days && r.Days > 0:
		return "extracted"
	default:
		return "partial"
	}
}

func inspectRun(dir string) runInfo {
	info := runInfo{Dir: dir}
	cp, err := store.ReadCheckpoint(dir)
	if err != nil {
		info.Err = err
		return info
	}
	info.Checkpoint = cp
	if dr, err := service.ParseDateRange(cp.RangeStart, cp.RangeEnd); err == nil {
		info.Days = len(service.SplitRange(dr, service.Day))
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "statsports_*.csv*"))
	info.Finished = len(matches) > 0
	return info
}

func runRuns(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return showRun(args[0])
	}
	return listRuns(cfg.RunsDir)
}

func listRuns(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No runs found")
			return nil
		}
		return fmt.Errorf("list runs: %w", err)
	}

	var runs []runInfo
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, inspectRun(filepath.Join(root, e.Name())))
		}
	}
	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Dir < runs[j].Dir })

	fmt.Printf("%-26s %-23s %-10s %-9s %-10s %s\n", "RUN", "RANGE", "STATUS", "DAYS", "SESSIONS", "UPDATED")
	fmt.Println("--------------------------------------------------------------------------------------------------")
	for _, r := range runs {
		cp := r.Checkpoint
		rng := ""
		if cp.RangeStart != "" {
			rng = cp.RangeStart + ".." + cp.RangeEnd
		}
		days := ""
		if r.Days > 0 {
			days = fmt.Sprintf("%d/%d", len(cp.ProcessedDates), r.Days)
		}
		fmt.Printf("%-26s %-23s %-10s %-9s %-10d %s\n",
			filepath.Base(r.Dir), rng, r.status(), days, cp.TotalSessions, cp.LastUpdated)
	}
	return nil
}

func showRun(dir string) error {
	r := inspectRun(dir)
	if r.Err != nil {
		return r.Err
	}
	cp := r.Checkpoint

	fmt.Printf("Run: %s\n", filepath.Base(r.Dir))
	fmt.Printf("  Status: %s\n", r.status())
	fmt.Printf("  Range: %s to %s\n", cp.RangeStart, cp.RangeEnd)
	fmt.Printf("  Progress: %d/%d days\n", len(cp.ProcessedDates), r.Days)
	fmt.Printf("  Sessions: %d\n", cp.TotalSessions)
	if cp.LastUpdated != "" {
		fmt.Printf("  Updated: %s\n", cp.LastUpdated)
	}

	if missing := missingDates(cp, r.Days); len(missing) > 0 && !r.Finished {
		fmt.Printf("\n  Remaining (%d):\n", len(missing))
		for i, d := range missing {
			if i == 10 {
				fmt.Printf("    ... and %d more\n", len(missing)-i)
				break
			}
			fmt.Printf("    - %s\n", d)
		}
		fmt.Printf("\n  Resume with: statsports extract --resume %s\n", r.Dir)
	}
	return nil
}

// missingDates lists the range's dates not yet in the checkpoint.
func missingDates(cp models.Checkpoint, days int) []string {
	if days == 0 {
		return nil
	}
	dr, err := service.ParseDateRange(cp.RangeStart, cp.RangeEnd)
	if err != nil {
		return nil
	}
	done := make(map[string]bool, len(cp.ProcessedDates))
	for _, d := range cp.ProcessedDates {
		done[d] = true
	}
	var missing []string
	for _, p := range service.SplitRange(dr, service.Day) {
		if !done[p.Date()] {
			missing = append(missing, p.Date())
		}
	}
	return missing
}
