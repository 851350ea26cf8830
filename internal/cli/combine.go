package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/statsports/internal/dataset"
	"github.com/raphaelgruber/statsports/internal/export"
	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/spf13/cobra"
)

var (
	combinePlayer      string
	combineOutput      string
	combineCompression string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Combine the CSVs of all runs into one deduplicated dataset",
	Long: `Load every run's statsports_*.csv under the runs dir, tag rows with
their run, drop rows already seen in an earlier run (same session date,
drill and player) and write one combined CSV.

Examples:
  statsports combine
  statsports combine --player "Mason Mount"
  statsports combine --player mount --output combined_mason_mount.csv`,
	Args: cobra.NoArgs,
	RunE: runCombine,
}

func init() {
	combineCmd.Flags().StringVarP(&combinePlayer, "player", "p", "", "keep only rows whose player name contains this")
	combineCmd.Flags().StringVarP(&combineOutput, "output", "o", "", "output CSV (default combined_<player>_<timestamp>.csv)")
	combineCmd.Flags().StringVar(&combineCompression, "compression", "", "compress output: gzip, zstd or lz4")
}

func runCombine(cmd *cobra.Command, args []string) error {
	if !export.ValidCompression(combineCompression) {
		return fmt.Errorf("unknown compression %q", combineCompression)
	}

	res, err := dataset.Combine(cfg.RunsDir, combinePlayer, logger)
	if err != nil {
		return fmt.Errorf("combine runs: %w", err)
	}
	fmt.Printf("Loaded %d rows from %d runs, removed %d duplicates\n", res.Loaded, len(res.Files), res.Removed)

	if res.Table.Len() == 0 {
		if res.Filtered {
			fmt.Printf("No rows found for player %q\n", combinePlayer)
			printPlayers(dataset.Players(unfiltered(res)))
		}
		return nil
	}
	dataset.SortByDate(res.Table)

	output := combineOutput
	if output == "" {
		output = defaultCombinedName(combinePlayer, time.Now())
	}
	path, err := (export.Writer{Compression: combineCompression}).WriteCSV(output, res.Table)
	if err != nil {
		return fmt.Errorf("write combined dataset: %w", err)
	}

	s := export.Summarize(res.Table)
	fmt.Println(paint(defaultTheme.completedStyle(), "✓ Combined data saved to "+path))
	fmt.Printf("\n  Rows:            %d\n", s.Rows)
	fmt.Printf("  Columns:         %d\n", s.Columns)
	fmt.Printf("  Unique sessions: %d\n", s.UniqueSessions)
	fmt.Printf("  Date range:      %s to %s\n", s.FirstDate, s.LastDate)
	printSources(dataset.SourceCounts(res.Table))
	return nil
}

// unfiltered reloads the combined table without the player filter so the
// user can see which names exist.
func unfiltered(res *dataset.CombineResult) *models.Table {
	all, err := dataset.LoadRuns(res.Files, logger)
	if err != nil {
		return &models.Table{}
	}
	return all
}

func defaultCombinedName(player string, now time.Time) string {
	name := "all"
	if player != "" {
		name = strings.NewReplacer(" ", "_", "/", "_").Replace(player)
	}
	return fmt.Sprintf("combined_%s_%s.csv", name, now.Format("20060102_150405"))
}

func printPlayers(players []string) {
	if len(players) == 0 {
		return
	}
	fmt.Println("\nAvailable players (first 20):")
	for i, p := range players {
		if i == 20 {
			fmt.Printf("  ... and %d more\n", len(players)-i)
			break
		}
		fmt.Printf("  - %s\n", p)
	}
}

func printSources(counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	fmt.Println("\n  Rows per source run:")
	for _, s := range sources {
		fmt.Printf("    %-26s %d\n", s, counts[s])
	}
}
