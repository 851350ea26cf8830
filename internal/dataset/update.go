package dataset

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/statsports/internal/export"
	"github.com/raphaelgruber/statsports/internal/models"
)

// CombineResult describes a combine pass over all runs.
type CombineResult struct {
	Table    *models.Table
	Files    []RunFile
	Loaded   int
	Removed  int
	Filtered bool
}

// Combine loads every run CSV under runsDir, removes duplicates and
// optionally keeps only rows matching player.
func Combine(runsDir, player string, logger *slog.Logger) (*CombineResult, error) {
	files, err := FindRunFiles(runsDir)
	if err != nil {
		return nil, err
	}
	combined, err := LoadRuns(files, logger)
	if err != nil {
		return nil, err
	}
	res := &CombineResult{Files: files, Loaded: combined.Len()}
	res.Table, res.Removed = Dedupe(combined)
	if player != "" {
		res.Table = FilterPlayer(res.Table, player)
		res.Filtered = true
	}
	return res, nil
}

// UpdateResult describes an incremental update of a combined file.
type UpdateResult struct {
	Source   RunFile
	Existing int
	Added    int
	Final    int
	Backup   string
	Path     string
}

// Update merges the player's rows from the newest run CSV under runsDir into
// the combined CSV at path. The previous file is copied to a _backup
// sibling before being overwritten. When the newest run has no matching
// rows the file is left untouched and Added is zero.
func Update(path, runsDir, player string, logger *slog.Logger) (*UpdateResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	existing, err := export.ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("load existing dataset: %w", err)
	}
	files, err := FindRunFiles(runsDir)
	if err != nil {
		return nil, err
	}
	newest := Newest(files)
	runTable, err := export.ReadCSV(newest.Path)
	if err != nil {
		return nil, fmt.Errorf("load newest run: %w", err)
	}

	incoming := FilterPlayer(runTable, player)
	res := &UpdateResult{Source: newest, Existing: existing.Len(), Path: path}
	logger.Info("update candidates", "run_dir", newest.RunDir, "rows", runTable.Len(), "matching", incoming.Len())
	if incoming.Len() == 0 {
		res.Final = existing.Len()
		return res, nil
	}

	if !existing.HasColumn(SourceColumn) {
		tagSource(existing, "existing")
	}
	tagSource(incoming, newest.RunDir)

	merged, removed := Merge(existing, incoming)
	res.Added = incoming.Len() - removed
	res.Final = merged.Len()

	res.Backup = BackupPath(path)
	if err := copyFile(path, res.Backup); err != nil {
		return nil, fmt.Errorf("backup dataset: %w", err)
	}
	if _, err := (export.Writer{Compression: compressionOf(path)}).WriteCSV(export.TrimCompressionExt(path), merged); err != nil {
		return nil, fmt.Errorf("write dataset: %w", err)
	}
	logger.Info("dataset updated", "path", path, "added", res.Added, "total", res.Final)
	return res, nil
}

// BackupPath turns "combined.csv" into "combined_backup.csv", keeping any
// compression extension.
func BackupPath(path string) string {
	plain := export.TrimCompressionExt(path)
	suffix := path[len(plain):]
	ext := filepath.Ext(plain)
	return strings.TrimSuffix(plain, ext) + "_backup" + ext + suffix
}

func compressionOf(path string) string {
	switch strings.ToLower(path[len(export.TrimCompressionExt(path)):]) {
	case ".gz", ".gzip":
		return export.CompressionGzip
	case ".zst":
		return export.CompressionZstd
	case ".lz4":
		return export.CompressionLZ4
	}
	return ""
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()
	_, err = io.Copy(out, in)
	return err
}
