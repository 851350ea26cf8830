package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
)

const pollInterval = time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <run-dir>",
	Short: "Show live progress of a running extraction",
	Long: `Follow a run directory's checkpoint and render a progress bar until
every day of the range is processed.

Run it in a second terminal next to "statsports extract".

Examples:
  statsports watch runs/20240401_091500_1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !styledTerm {
			return showRun(args[0])
		}
		return RunWatch(args[0])
	},
}

// tickMsg triggers polling the checkpoint.
type tickMsg time.Time

// runUpdateMsg carries the re-read run state.
type runUpdateMsg struct {
	run runInfo
}

// progressModel is the bubbletea model for run progress.
type progressModel struct {
	dir      string
	run      runInfo
	loaded   bool
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(dir string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		dir:      dir,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchRun(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchRun()

	case runUpdateMsg:
		m.run = msg.run
		m.loaded = true
		// A missing checkpoint means the run has not started yet.
		if m.run.Err != nil && !errors.Is(m.run.Err, fs.ErrNotExist) {
			m.err = m.run.Err
			m.done = true
			return m, tea.Quit
		}
		if m.run.Err == nil && (m.run.Finished || (m.run.Days > 0 && len(m.run.Checkpoint.ProcessedDates) >= m.run.Days)) {
			m.done = true
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if !m.loaded || m.run.Err != nil {
		return m.theme.hintStyle().Render("Waiting for checkpoint in "+m.dir+"...") + "\n"
	}

	cp := m.run.Checkpoint
	var pct float64
	if m.run.Days > 0 {
		pct = float64(len(cp.ProcessedDates)) / float64(m.run.Days)
	}

	last := ""
	if n := len(cp.ProcessedDates); n > 0 {
		last = cp.ProcessedDates[n-1]
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", filepath.Base(m.dir)))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d days, %d sessions", len(cp.ProcessedDates), m.run.Days, cp.TotalSessions)
	hint := m.theme.hintStyle().Render("Last processed " + last + ". Press q to stop watching")

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nStopped watching %s; the extraction is unaffected.\n", m.dir)
		return m.theme.hintStyle().Render(msg)
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	cp := m.run.Checkpoint
	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Completed") + "\n\n")
	fmt.Fprintf(&b, "  Range:     %s to %s\n", cp.RangeStart, cp.RangeEnd)
	fmt.Fprintf(&b, "  Days:      %d\n", len(cp.ProcessedDates))
	fmt.Fprintf(&b, "  Sessions:  %d\n", cp.TotalSessions)
	return b.String()
}

// fetchRun re-reads the checkpoint in a command so Update never blocks.
func (m progressModel) fetchRun() tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		return runUpdateMsg{run: inspectRun(dir)}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunWatch runs the interactive progress UI for a run directory.
// Returns nil when the run completes or the user stops watching.
func RunWatch(dir string) error {
	p := tea.NewProgram(newProgressModel(dir))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := finalModel.(progressModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
