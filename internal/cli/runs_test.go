package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raphaelgruber/statsports/internal/models"
	"github.com/raphaelgruber/statsports/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCheckpoint(t *testing.T, dir string, processed ...string) {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 23, 59, 59, 0, time.UTC)
	set := map[string]bool{}
	for _, d := range processed {
		set[d] = true
	}
	require.NoError(t, store.New(dir, nil).UpdateCheckpoint(start, end, set, 4))
}

func TestInspectRun(t *testing.T) {
	dir := t.TempDir()

	r := inspectRun(dir)
	assert.Error(t, r.Err)
	assert.Equal(t, "unreadable", r.status())

	writeCheckpoint(t, dir, "2024-03-01")
	r = inspectRun(dir)
	require.NoError(t, r.Err)
	assert.Equal(t, 3, r.Days)
	assert.Equal(t, "partial", r.status())
	assert.Equal(t, []string{"2024-03-02", "2024-03-03"}, missingDates(r.Checkpoint, r.Days))

	writeCheckpoint(t, dir, "2024-03-01", "2024-03-02", "2024-03-03")
	assert.Equal(t, "extracted", inspectRun(dir).status())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "statsports_20240301_20240303.csv.gz"), nil, 0o644))
	r = inspectRun(dir)
	assert.True(t, r.Finished)
	assert.Equal(t, "complete", r.status())
}

func TestMissingDatesWithoutRange(t *testing.T) {
	assert.Nil(t, missingDates(models.Checkpoint{}, 0))
}

func TestDefaultCombinedName(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 15, 0, 0, time.UTC)
	assert.Equal(t, "combined_Mason_Mount_20240401_091500.csv", defaultCombinedName("Mason Mount", now))
	assert.Equal(t, "combined_a_b_20240401_091500.csv", defaultCombinedName("a/b", now))
	assert.Equal(t, "combined_all_20240401_091500.csv", defaultCombinedName("", now))
}

func TestProgressModelStopsWhenAllDaysProcessed(t *testing.T) {
	dir := t.TempDir()
	m := newProgressModel(dir)

	next, cmd := m.Update(runUpdateMsg{run: inspectRun(dir)})
	pm := next.(progressModel)
	assert.False(t, pm.done, "missing checkpoint keeps polling")
	assert.NotNil(t, cmd)
	assert.Contains(t, pm.renderContent(), "Waiting for checkpoint")

	writeCheckpoint(t, dir, "2024-03-01")
	next, _ = pm.Update(runUpdateMsg{run: inspectRun(dir)})
	pm = next.(progressModel)
	assert.False(t, pm.done)
	assert.Contains(t, pm.renderContent(), "1/3 days")

	writeCheckpoint(t, dir, "2024-03-01", "2024-03-02", "2024-03-03")
	next, _ = pm.Update(runUpdateMsg{run: inspectRun(dir)})
	pm = next.(progressModel)
	assert.True(t, pm.done)
	assert.Contains(t, pm.renderContent(), "Completed")
}

func TestProgressModelFailsOnCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.CheckpointFile), []byte("{"), 0o644))

	next, _ := newProgressModel(dir).Update(runUpdateMsg{run: inspectRun(dir)})
	pm := next.(progressModel)
	assert.True(t, pm.done)
	assert.Error(t, pm.err)
}
