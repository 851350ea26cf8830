package cli

import (
	"fmt"

	"github.com/raphaelgruber/statsports/internal/dataset"
	"github.com/spf13/cobra"
)

var updatePlayer string

var updateCmd = &cobra.Command{
	Use:   "update <combined-csv>",
	Short: "Add a player's rows from the newest run to a combined CSV",
	Long: `Merge the rows of one player from the most recently written run CSV
into an existing combined CSV. Rows already present are kept as they are.
The previous file is saved next to it as <name>_backup.csv first.

Examples:
  statsports update combined_mason_mount.csv --player "Mason Mount"
  statsports update combined_mason_mount.csv.zst --player mount`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updatePlayer, "player", "p", "", "player name to match (case-insensitive substring)")
	_ = updateCmd.MarkFlagRequired("player")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	res, err := dataset.Update(args[0], cfg.RunsDir, updatePlayer, logger)
	if err != nil {
		return fmt.Errorf("update dataset: %w", err)
	}

	fmt.Printf("Newest run: %s (%s)\n", res.Source.RunDir, res.Source.ModTime.Format("2006-01-02 15:04:05"))
	if res.Backup == "" {
		fmt.Println(paint(defaultTheme.hintStyle(), fmt.Sprintf("No rows for %q in the newest run; %s is unchanged.", updatePlayer, res.Path)))
		return nil
	}

	fmt.Println(paint(defaultTheme.completedStyle(), "✓ Updated "+res.Path))
	fmt.Printf("\n  Existing rows: %d\n", res.Existing)
	fmt.Printf("  Added rows:    %d\n", res.Added)
	fmt.Printf("  Total rows:    %d\n", res.Final)
	fmt.Printf("  Backup:        %s\n", res.Backup)
	return nil
}
