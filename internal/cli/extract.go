package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/statsports/internal/client"
	"github.com/raphaelgruber/statsports/internal/export"
	"github.com/raphaelgruber/statsports/internal/metrics"
	"github.com/raphaelgruber/statsports/internal/service"
	"github.com/raphaelgruber/statsports/internal/store"
	"github.com/spf13/cobra"
)

var (
	extractResume      string
	extractCompression string
)

var extractCmd = &cobra.Command{
	Use:   "extract <start-date> <end-date>",
	Short: "Extract sessions for an inclusive date range",
	Long: `Extract every session between two dates (YYYY-MM-DD, inclusive).

Each day is requested in one call. A failing day is probed for data and,
if the probe finds any, re-fetched hour by hour. Progress is checkpointed
after every day into a new run directory under the runs dir.

Examples:
  statsports extract 2024-03-01 2024-03-31
  statsports extract 2024-03-01 2024-03-31 --compression zstd
  statsports extract --resume runs/20240401_091500_1a2b3c4d
  statsports extract 2024-03-01 2024-03-31 --resume runs/20240401_091500_1a2b3c4d`,
	Args: func(cmd *cobra.Command, args []string) error {
		if extractResume != "" && len(args) == 0 {
			return nil
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractResume, "resume", "r", "", "continue the run in this directory")
	extractCmd.Flags().StringVar(&extractCompression, "compression", "", "compress artifacts: gzip, zstd or lz4")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	compression := cfg.Compression
	if cmd.Flags().Changed("compression") {
		compression = extractCompression
	}
	if !export.ValidCompression(compression) {
		return fmt.Errorf("unknown compression %q", compression)
	}

	dr, err := extractRange(args)
	if err != nil {
		return err
	}

	runDir := extractResume
	if runDir == "" {
		runDir, err = store.NewRunDir(cfg.RunsDir)
		if err != nil {
			return err
		}
	} else if info, err := os.Stat(runDir); err != nil || !info.IsDir() {
		return fmt.Errorf("run directory not found: %s", runDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	st := store.New(runDir, logger)
	runner := service.NewRunner(client.New(cfg, logger), st, cfg, collector, logger)
	runner.OnDay = printDay

	fmt.Printf("Extracting %s into %s\n", dr, runDir)
	res, err := runner.Run(ctx, dr)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println(paint(defaultTheme.warningStyle(), fmt.Sprintf("\nInterrupted after %d processed days.", len(res.ProcessedDates))))
			fmt.Println(paint(defaultTheme.hintStyle(), fmt.Sprintf("Resume with: statsports extract --resume %s", runDir)))
		}
		return fmt.Errorf("extract: %w", err)
	}

	writer := export.Writer{Compression: compression}
	artifacts, table, err := writer.WriteAll(runDir, dr.Start(), dr.End(), res.Sessions, res.Players)
	if err != nil {
		// Progress logs stay so the data can be recovered with --resume.
		logger.Warn("writing artifacts failed", "run_dir", runDir, "error", err)
	} else if err := st.Finalize(); err != nil {
		logger.Warn("removing progress logs failed", "run_dir", runDir, "error", err)
	}

	printRunSummary(res, artifacts, export.Summarize(table), collector.Snapshot())
	return nil
}

// extractRange takes the range from the arguments or, when resuming without
// arguments, from the run's checkpoint.
func extractRange(args []string) (service.DateRange, error) {
	if len(args) == 2 {
		return service.ParseDateRange(args[0], args[1])
	}
	cp, err := store.ReadCheckpoint(extractResume)
	if err != nil {
		return service.DateRange{}, err
	}
	return service.ParseDateRange(cp.RangeStart, cp.RangeEnd)
}

func printDay(d service.DayReport) {
	o := d.Outcome
	state := string(o.State)
	switch o.State {
	case service.StateSuccess:
		state = paint(defaultTheme.completedStyle(), state)
	case service.StateHourly:
		state = paint(defaultTheme.warningStyle(), state)
	default:
		state = paint(defaultTheme.hintStyle(), state)
	}

	line := fmt.Sprintf("[%d/%d] %s %-8s %4d sessions", d.Index, d.Total, d.Date, state, len(o.Sessions))
	if o.State == service.StateHourly {
		line += fmt.Sprintf(" (%d hourly requests, %d failed)", o.HourlyRequests, o.FailedHours)
	}
	if d.Players > 0 {
		line += fmt.Sprintf(", %d players", d.Players)
	}
	line += fmt.Sprintf("  total %d", d.Cumulated)
	fmt.Println(line)
}

func printRunSummary(res *service.RunResult, a export.Artifacts, s export.Summary, snap metrics.Snapshot) {
	fmt.Println()
	if len(res.Sessions) == 0 {
		fmt.Println(paint(defaultTheme.warningStyle(), "No data extracted."))
	} else {
		fmt.Println(paint(defaultTheme.completedStyle(), "✓ Extraction complete"))
	}

	fmt.Printf("\n  Run directory:   %s\n", res.RunDir)
	fmt.Printf("  Days processed:  %d (%d resumed)\n", len(res.ProcessedDates), res.Skipped)
	fmt.Printf("  Sessions:        %d\n", len(res.Sessions))
	fmt.Printf("  Day outcomes:    %d full, %d empty, %d hourly, %d no data\n",
		res.DaysSuccess, res.DaysEmpty, res.DaysHourly, res.DaysNoData)
	if res.FailedHours > 0 {
		fmt.Printf("  Failed hours:    %d\n", res.FailedHours)
	}
	if res.Duplicates > 0 {
		fmt.Printf("  Duplicates:      %d removed\n", res.Duplicates)
	}

	if s.Rows > 0 {
		fmt.Printf("\n  Rows:            %d\n", s.Rows)
		fmt.Printf("  Date range:      %s to %s\n", s.FirstDate, s.LastDate)
		fmt.Printf("  Unique players:  %d\n", s.UniquePlayers)
		fmt.Printf("  Unique sessions: %d\n", s.UniqueSessions)
	}

	for _, path := range []string{a.SessionsJSON, a.PlayersJSON, a.CSV} {
		if path != "" {
			fmt.Printf("  Wrote %s\n", path)
		}
	}

	if verbose && len(snap.Operations) > 0 {
		fmt.Println("\n  Requests:")
		for _, op := range snap.Operations {
			fmt.Printf("    %-15s %4d calls, %d failed, avg %.0fms, max %dms\n",
				op.Name, op.Count, op.Failures, op.AvgTimeMs, op.MaxTimeMs)
		}
	}
}
