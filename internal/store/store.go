// Package store persists extraction progress in a run directory so that an
// interrupted run can resume without refetching completed days.
//
// Layout:
//
//	checkpoint.json           processed dates and running total
//	progress_sessions.jsonl   {"date","sessions"} per processed day
//	progress_players.jsonl    {"date","players"} per processed day
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/statsports/internal/models"
)

// File names inside a run directory.
const (
	CheckpointFile = "checkpoint.json"
	SessionsLog    = "progress_sessions.jsonl"
	PlayersLog     = "progress_players.jsonl"
)

// maxLineSize bounds a single log line; a day of sessions can be large.
const maxLineSize = 256 << 20

// State is what Load recovers from a run directory.
type State struct {
	Processed map[string]bool
	Sessions  []models.Session
	Players   models.PlayersByDate
}

// ProcessedDates returns the processed dates in chronological order.
func (s State) ProcessedDates() []string {
	return sortedDates(s.Processed)
}

// Store owns the files of one run directory. It is not safe for concurrent
// use, and only one process may use a directory at a time.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New returns a store rooted at dir. Nothing is created until Initialize.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// NewRunDir creates a fresh run directory under root named
// <UTC yyyymmdd_hhmmss>_<8 hex chars>.
func NewRunDir(root string) (string, error) {
	name := time.Now().UTC().Format("20060102_150405") + "_" + uuid.New().String()[:8]
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

// Dir returns the run directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// Initialize creates the directory and empty logs, keeping any existing log
// content, and writes a checkpoint with no processed dates.
func (s *Store) Initialize(start, end time.Time) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	for _, name := range []string{SessionsLog, PlayersLog} {
		f, err := os.OpenFile(s.path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
	}
	return s.UpdateCheckpoint(start, end, nil, 0)
}

// Load returns previously persisted progress for the range. A missing,
// unreadable or mismatching checkpoint yields an empty state and no error,
// as does a finalized run whose logs are gone.
// Only log entries for checkpointed dates are rehydrated; when a date occurs
// more than once in a log, the last occurrence wins.
func (s *Store) Load(start, end time.Time) State {
	state := State{Processed: map[string]bool{}, Sessions: []models.Session{}, Players: models.PlayersByDate{}}

	cp, err := s.ReadCheckpoint()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("ignoring unreadable checkpoint", "run_dir", s.dir, "error", err)
		}
		return state
	}
	if !cp.Matches(start, end) {
		s.logger.Info("checkpoint is for a different range, starting fresh",
			"run_dir", s.dir, "checkpoint_start", cp.RangeStart, "checkpoint_end", cp.RangeEnd)
		return state
	}
	if _, err := os.Stat(s.path(SessionsLog)); errors.Is(err, os.ErrNotExist) {
		s.logger.Info("run was finalized, starting fresh", "run_dir", s.dir)
		return state
	}
	for _, d := range cp.ProcessedDates {
		state.Processed[d] = true
	}

	sessionsByDate := map[string][]models.Session{}
	s.scanLog(SessionsLog, func(line []byte) error {
		var e models.SessionsEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if d := dateOf(e.Date); state.Processed[d] {
			sessionsByDate[d] = e.Sessions
		}
		return nil
	})
	for _, d := range sortedDates(state.Processed) {
		state.Sessions = append(state.Sessions, sessionsByDate[d]...)
	}

	s.scanLog(PlayersLog, func(line []byte) error {
		var e models.PlayersEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		d := dateOf(e.Date)
		if !state.Processed[d] {
			return nil
		}
		key := d + "T00:00:00Z"
		if len(e.Players) == 0 {
			delete(state.Players, key)
		} else {
			state.Players[key] = e.Players
		}
		return nil
	})

	s.logger.Info("resumed progress", "run_dir", s.dir,
		"processed_dates", len(state.Processed), "sessions", len(state.Sessions))
	return state
}

// ReadCheckpoint decodes checkpoint.json.
func (s *Store) ReadCheckpoint() (models.Checkpoint, error) {
	return ReadCheckpoint(s.dir)
}

// ReadCheckpoint decodes the checkpoint of the run directory dir.
func ReadCheckpoint(dir string) (models.Checkpoint, error) {
	var cp models.Checkpoint
	data, err := os.ReadFile(filepath.Join(dir, CheckpointFile))
	if err != nil {
		return cp, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, nil
}

// AppendDay appends one line to each progress log and syncs both files.
// A nil players slice is written as an empty list.
func (s *Store) AppendDay(date string, sessions []models.Session, players []models.Player) error {
	if sessions == nil {
		sessions = []models.Session{}
	}
	if players == nil {
		players = []models.Player{}
	}
	if err := s.appendLine(SessionsLog, models.SessionsEntry{Date: date, Sessions: sessions}); err != nil {
		return err
	}
	return s.appendLine(PlayersLog, models.PlayersEntry{Date: date, Players: players})
}

func (s *Store) appendLine(name string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", name, err)
	}
	f, err := os.OpenFile(s.path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	return f.Close()
}

// UpdateCheckpoint atomically replaces checkpoint.json.
func (s *Store) UpdateCheckpoint(start, end time.Time, processed map[string]bool, total int) error {
	cp := models.Checkpoint{
		RangeStart:     start.Format(models.DateLayout),
		RangeEnd:       end.Format(models.DateLayout),
		ProcessedDates: sortedDates(processed),
		TotalSessions:  total,
		LastUpdated:    s.now().UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, CheckpointFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path(CheckpointFile)); err != nil {
		cleanup()
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Finalize removes the progress logs. The checkpoint stays as a record of
// the completed run.
func (s *Store) Finalize() error {
	var errs []error
	for _, name := range []string{SessionsLog, PlayersLog} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// scanLog calls fn for every non-empty line. Lines fn rejects are skipped.
func (s *Store) scanLog(name string, fn func(line []byte) error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("cannot open progress log", "file", name, "error", err)
		}
		return
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		line, err := readLine(r)
		if len(line) > 0 {
			lineNo++
			if perr := fn(line); perr != nil {
				s.logger.Warn("skipping malformed progress line", "file", name, "line", lineNo, "error", perr)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("progress log read failed", "file", name, "error", err)
			}
			return
		}
	}
}

// readLine returns the next line without its trailing newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLineSize {
			return nil, fmt.Errorf("line exceeds %d bytes", maxLineSize)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		for len(buf) > 0 && (buf[len(buf)-1] == '\n' || buf[len(buf)-1] == '\r') {
			buf = buf[:len(buf)-1]
		}
		return buf, err
	}
}

// dateOf normalises a log entry date ("2024-03-01" or
// "2024-03-01T00:00:00Z") to YYYY-MM-DD.
func dateOf(s string) string {
	if len(s) >= len(models.DateLayout) {
		return s[:len(models.DateLayout)]
	}
	return s
}

func sortedDates(set map[string]bool) []string {
	dates := make([]string, 0, len(set))
	for d, ok := range set {
		if ok {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}
