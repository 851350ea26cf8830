package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the run logger: human-readable text on stderr and JSON
// lines appended to logFile. An empty logFile logs to stderr only.
// The returned cleanup closes the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	console := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	noop := func() error { return nil }

	if logFile == "" {
		return slog.New(console), noop
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.New(console).Warn("failed to create log directory, using stderr only", "error", err, "file", logFile)
			return slog.New(console), noop
		}
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.New(console).Warn("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(console), noop
	}

	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(console, jsonHandler)), file.Close
}

// NewLogger fans out to the given writers; used by tests and by callers that
// already own their sinks.
func NewLogger(console, jsonSink io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
		slog.NewJSONHandler(jsonSink, &slog.HandlerOptions{Level: level}),
	))
}
