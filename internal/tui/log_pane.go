package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskgraph/internal/events"
)

// LogPaneModel renders a scrollable event log.
type LogPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewLogPaneModel creates a new log pane model.
func NewLogPaneModel() LogPaneModel {
	return LogPaneModel{
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The viewport's default keymap covers up/down and j/k.
		m.viewport, cmd = m.viewport.Update(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case events.Event:
		if line := formatEvent(msg); line != "" {
			atBottom := m.viewport.AtBottom()
			m.lines = append(m.lines, line)
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
	}

	return m, cmd
}

// formatEvent returns the one-line log rendering of an event, or "" to skip it.
func formatEvent(ev events.Event) string {
	switch ev := ev.(type) {
	case events.TaskStartedEvent:
		return fmt.Sprintf("task %q started (attempt %d)", ev.ID, ev.Attempt)
	case events.TaskRetryingEvent:
		return StyleStatusRetrying.Render(
			fmt.Sprintf("task %q attempt %d failed, retrying in %s: %v", ev.ID, ev.Attempt, ev.Delay, ev.Err))
	case events.TaskSucceededEvent:
		return StyleStatusSucceeded.Render(
			fmt.Sprintf("task %q succeeded on attempt %d (%s)", ev.ID, ev.Attempt, ev.Duration.Round(time.Millisecond)))
	case events.TaskFailedEvent:
		return StyleStatusFailed.Render(
			fmt.Sprintf("task %q failed after %d attempts: %v", ev.ID, ev.Attempts, ev.Err))
	case events.TaskTimedOutEvent:
		return StyleStatusTimedOut.Render(
			fmt.Sprintf("task %q timed out after %d attempts", ev.ID, ev.Attempts))
	case events.LevelStartedEvent:
		return fmt.Sprintf("level %d started: %s", ev.Index, strings.Join(ev.Tasks, ", "))
	case events.LevelFinishedEvent:
		return fmt.Sprintf("level %d finished", ev.Index)
	case events.RunFinishedEvent:
		return StyleTitle.Render(fmt.Sprintf("run finished in %s: %d succeeded, %d failed, %d timed out",
			ev.Duration.Round(time.Millisecond), ev.Succeeded, ev.Failed, ev.TimedOut))
	default:
		return ""
	}
}

// SetSize sets the pane dimensions.
func (m *LogPaneModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.resizeViewport()
}

// SetFocused sets the focus state.
func (m *LogPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func (m *LogPaneModel) resizeViewport() {
	// Border eats 2 columns and 2 rows, title eats 2 more rows.
	m.viewport.Width = max(0, m.width-2)
	m.viewport.Height = max(0, m.height-4)
}

// View renders the event log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Events")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}
