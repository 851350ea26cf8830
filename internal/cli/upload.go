package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"

	"github.com/raphaelgruber/statsports/internal/upload"
	"github.com/spf13/cobra"
)

var uploadPrefix string

var uploadCmd = &cobra.Command{
	Use:   "upload <run-dir | file>...",
	Short: "Upload run artifacts or combined CSVs to Azure Blob Storage",
	Long: `Upload finished run directories (artifacts and checkpoint, without
progress logs) or single files to the configured Azure container.

Run directories are stored under their own name; files under --prefix.

Examples:
  statsports upload runs/20240401_091500_1a2b3c4d
  statsports upload combined_mason_mount.csv --prefix combined`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadPrefix, "prefix", "", "blob name prefix for single files")
}

func runUpload(cmd *cobra.Command, args []string) error {
	uploader, err := upload.NewAzure(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var failed int
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("stat %s: %w", arg, err)
		}

		if info.IsDir() {
			blobs, err := uploader.UploadRun(ctx, arg)
			fmt.Printf("%s: %d files uploaded\n", arg, len(blobs))
			if err != nil {
				failed++
				fmt.Println(paint(defaultTheme.errorStyle(), fmt.Sprintf("  %v", err)))
			}
			continue
		}

		blob := path.Join(uploadPrefix, filepath.Base(arg))
		if err := uploader.UploadFile(ctx, arg, blob); err != nil {
			failed++
			fmt.Println(paint(defaultTheme.errorStyle(), fmt.Sprintf("%s: %v", arg, err)))
			continue
		}
		fmt.Printf("%s: uploaded as %s\n", arg, blob)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}
