package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskgraph/internal/events"
)

// ProgressPaneModel renders the run-level progress counts.
type ProgressPaneModel struct {
	total     int
	succeeded int
	failed    int
	timedOut  int
	running   int
	pending   int
	width     int
	height    int
	focused   bool
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.RunProgressEvent:
		m.total = msg.Total
		m.succeeded = msg.Succeeded
		m.failed = msg.Failed
		m.timedOut = msg.TimedOut
		m.running = msg.Running
		m.pending = msg.Pending
	}

	return m, nil
}

// SetSize sets the pane dimensions.
func (m *ProgressPaneModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetFocused sets the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Run Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Succeeded: %s\n", StyleStatusSucceeded.Render(fmt.Sprintf("%d", m.succeeded))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Timed out: %s\n", StyleStatusTimedOut.Render(fmt.Sprintf("%d", m.timedOut))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		doneWidth := (m.succeeded * barWidth) / m.total
		failedWidth := ((m.failed + m.timedOut) * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - doneWidth - failedWidth - runningWidth

		bar := StyleStatusSucceeded.Render(strings.Repeat("=", max(0, doneWidth))) +
			StyleStatusFailed.Render(strings.Repeat("x", max(0, failedWidth))) +
			StyleStatusRunning.Render(strings.Repeat(">", max(0, runningWidth))) +
			StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
		b.WriteString("[" + bar + "]\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}
