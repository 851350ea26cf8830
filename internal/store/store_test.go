package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func endOf(s string) time.Time {
	return day(s).Add(24*time.Hour - time.Second)
}

func session(date string, id int) models.Session {
	return models.MustSession(map[string]any{
		"sessionDetails": map[string]any{"sessionDate": date + "T00:00:00Z", "sessionId": id},
	})
}

func sessionIDs(t *testing.T, sessions []models.Session) []string {
	t.Helper()
	var ids []string
	for _, s := range sessions {
		ids = append(ids, models.Text(s.Details()["sessionId"]))
	}
	return ids
}

func TestInitializeCreatesFilesWithoutTruncating(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	s := New(dir, nil)
	start, end := day("2024-03-01"), endOf("2024-03-03")

	require.NoError(t, s.Initialize(start, end))
	require.NoError(t, s.AppendDay("2024-03-01", []models.Session{session("2024-03-01", 1)}, nil))
	require.NoError(t, s.Initialize(start, end))

	data, err := os.ReadFile(filepath.Join(dir, SessionsLog))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))

	cp, err := s.ReadCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", cp.RangeStart)
	assert.Equal(t, "2024-03-03", cp.RangeEnd)
	assert.Empty(t, cp.ProcessedDates)
	assert.True(t, strings.HasSuffix(cp.LastUpdated, "Z"))
}

func TestLoadIgnoresLoggedButUncheckpointedDay(t *testing.T) {
	s := New(t.TempDir(), nil)
	start, end := day("2024-03-01"), endOf("2024-03-05")
	require.NoError(t, s.Initialize(start, end))

	players := []models.Player{models.MustPlayer(map[string]any{"customPlayerId": "P1"})}
	require.NoError(t, s.AppendDay("2024-03-01", []models.Session{session("2024-03-01", 1)}, players))
	require.NoError(t, s.AppendDay("2024-03-02", []models.Session{session("2024-03-02", 2), session("2024-03-02", 3)}, nil))
	require.NoError(t, s.UpdateCheckpoint(start, end, map[string]bool{"2024-03-01": true, "2024-03-02": true}, 3))
	// Crash between AppendDay and UpdateCheckpoint.
	require.NoError(t, s.AppendDay("2024-03-03", []models.Session{session("2024-03-03", 4)}, nil))

	state := s.Load(start, end)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, state.ProcessedDates())
	assert.Equal(t, []string{"1", "2", "3"}, sessionIDs(t, state.Sessions))
	require.Contains(t, state.Players, "2024-03-01T00:00:00Z")
	assert.Equal(t, "P1", state.Players["2024-03-01T00:00:00Z"][0].CustomID())
	assert.NotContains(t, state.Players, "2024-03-03T00:00:00Z")
}

func TestLoadRangeMismatchDiscardsProgress(t *testing.T) {
	s := New(t.TempDir(), nil)
	start, end := day("2024-01-01"), endOf("2024-01-05")
	require.NoError(t, s.Initialize(start, end))
	require.NoError(t, s.AppendDay("2024-01-01", []models.Session{session("2024-01-01", 1)}, nil))
	require.NoError(t, s.UpdateCheckpoint(start, end, map[string]bool{"2024-01-01": true}, 1))

	state := s.Load(day("2024-02-01"), endOf("2024-02-05"))
	assert.Empty(t, state.Processed)
	assert.Empty(t, state.Sessions)
	assert.Empty(t, state.Players)
}

func TestLoadWithoutCheckpoint(t *testing.T) {
	state := New(t.TempDir(), nil).Load(day("2024-01-01"), endOf("2024-01-01"))
	assert.Empty(t, state.Processed)
	assert.NotNil(t, state.Sessions)
}

func TestLoadCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CheckpointFile), []byte("{not json"), 0o644))

	state := New(dir, nil).Load(day("2024-01-01"), endOf("2024-01-01"))
	assert.Empty(t, state.Processed)
}

func TestLoadSkipsMalformedLinesAndLastEntryWins(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	start, end := day("2024-03-01"), endOf("2024-03-01")
	require.NoError(t, s.Initialize(start, end))
	require.NoError(t, s.AppendDay("2024-03-01", []models.Session{session("2024-03-01", 1)}, nil))

	f, err := os.OpenFile(filepath.Join(dir, SessionsLog), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, s.AppendDay("2024-03-01", []models.Session{session("2024-03-01", 7)}, nil))
	require.NoError(t, s.UpdateCheckpoint(start, end, map[string]bool{"2024-03-01": true}, 1))

	state := s.Load(start, end)
	assert.Equal(t, []string{"7"}, sessionIDs(t, state.Sessions))
}

func TestLoadAcceptsTimestampDateKeys(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	start, end := day("2024-03-01"), endOf("2024-03-01")
	require.NoError(t, s.Initialize(start, end))

	line, err := json.Marshal(models.SessionsEntry{Date: "2024-03-01T00:00:00", Sessions: []models.Session{session("2024-03-01", 9)}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionsLog), append(line, '\n'), 0o644))
	require.NoError(t, s.UpdateCheckpoint(start, end, map[string]bool{"2024-03-01": true}, 1))

	assert.Equal(t, []string{"9"}, sessionIDs(t, s.Load(start, end).Sessions))
}

func TestUpdateCheckpointIsSortedAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) }
	start, end := day("2024-03-01"), endOf("2024-03-03")

	processed := map[string]bool{"2024-03-03": true, "2024-03-01": true, "2024-03-02": true}
	require.NoError(t, s.UpdateCheckpoint(start, end, processed, 8))

	cp, err := s.ReadCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, cp.ProcessedDates)
	assert.Equal(t, 8, cp.TotalSessions)
	assert.Equal(t, "2024-03-04T10:00:00.000000Z", cp.LastUpdated)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CheckpointFile, entries[0].Name())
}

func TestFinalizeRemovesLogsKeepsCheckpoint(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	start, end := day("2024-03-01"), endOf("2024-03-01")
	require.NoError(t, s.Initialize(start, end))
	require.NoError(t, s.AppendDay("2024-03-01", []models.Session{session("2024-03-01", 1)}, nil))
	require.NoError(t, s.UpdateCheckpoint(start, end, map[string]bool{"2024-03-01": true}, 1))

	require.NoError(t, s.Finalize())
	require.NoError(t, s.Finalize(), "missing logs are not an error")

	assert.NoFileExists(t, filepath.Join(dir, SessionsLog))
	assert.NoFileExists(t, filepath.Join(dir, PlayersLog))
	assert.FileExists(t, filepath.Join(dir, CheckpointFile))

	state := s.Load(start, end)
	assert.Empty(t, state.Processed, "a finalized run is extracted again from scratch")
	assert.Empty(t, state.Sessions)
}

func TestNewRunDir(t *testing.T) {
	root := t.TempDir()
	dir, err := NewRunDir(root)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Regexp(t, `^\d{8}_\d{6}_[0-9a-f]{8}$`, filepath.Base(dir))
}
