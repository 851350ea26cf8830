package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/statsports/internal/dataset"
	"github.com/raphaelgruber/statsports/internal/db"
	"github.com/raphaelgruber/statsports/internal/export"
	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/raphaelgruber/statsports/internal/store"
	"github.com/spf13/cobra"
)

var (
	publishRun    string
	publishPlayer string
)

var publishCmd = &cobra.Command{
	Use:   "publish [csv]",
	Short: "Publish drill rows to SurrealDB",
	Long: `Write flattened drill rows into SurrealDB. Each row is keyed by its
session date, drill and player; rows that were published before are
skipped, so publishing is safe to repeat.

Without a CSV argument the rows of all runs under the runs dir are combined
first. With --run, the run's CSV is published and the run is recorded in
the extraction_run table.

Examples:
  statsports publish
  statsports publish combined_mason_mount.csv
  statsports publish --run runs/20240401_091500_1a2b3c4d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishRun, "run", "", "publish this run directory's CSV and record the run")
	publishCmd.Flags().StringVarP(&publishPlayer, "player", "p", "", "publish only rows for this player")
}

func runPublish(cmd *cobra.Command, args []string) error {
	table, err := publishTable(args)
	if err != nil {
		return err
	}
	if publishPlayer != "" {
		table = dataset.FilterPlayer(table, publishPlayer)
	}
	if table.Len() == 0 {
		fmt.Println("Nothing to publish")
		return nil
	}

	ctx := context.Background()
	client, err := db.NewClient(ctx, db.ConfigFrom(cfg), logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := client.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()
	if err := client.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	res, err := client.PublishRows(ctx, table)
	if err != nil {
		return fmt.Errorf("publish rows: %w", err)
	}

	if publishRun != "" {
		cp, err := store.ReadCheckpoint(publishRun)
		if err != nil {
			logger.Warn("run not recorded", "run_dir", publishRun, "error", err)
		} else if err := client.RecordRun(ctx, db.RunRecord{
			RunDir:        filepath.Base(filepath.Clean(publishRun)),
			Checkpoint:    cp,
			PublishedRows: res.Inserted,
		}); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	fmt.Println(paint(defaultTheme.completedStyle(), "✓ Published"))
	fmt.Printf("\n  Inserted: %d\n", res.Inserted)
	fmt.Printf("  Skipped:  %d (already published)\n", res.Skipped)
	return nil
}

// publishTable loads the rows named by the arguments: an explicit CSV, the
// CSV of --run, or all runs combined.
func publishTable(args []string) (*models.Table, error) {
	switch {
	case len(args) == 1:
		return export.ReadCSV(args[0])
	case publishRun != "":
		matches, err := filepath.Glob(filepath.Join(publishRun, "statsports_*.csv*"))
		if err != nil || len(matches) == 0 {
			return nil, fmt.Errorf("%w in %s", dataset.ErrNoRunFiles, publishRun)
		}
		t, err := export.ReadCSV(matches[0])
		if err != nil {
			return nil, err
		}
		if !t.HasColumn(dataset.SourceColumn) {
			t.AddColumn(dataset.SourceColumn)
			for _, row := range t.Rows {
				row[dataset.SourceColumn] = filepath.Base(filepath.Clean(publishRun))
			}
		}
		return t, nil
	default:
		res, err := dataset.Combine(cfg.RunsDir, "", logger)
		if err != nil {
			return nil, fmt.Errorf("combine runs: %w", err)
		}
		return res.Table, nil
	}
}
