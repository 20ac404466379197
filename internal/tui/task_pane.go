package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskgraph/internal/events"
)

// TaskState tracks the display state of a single task.
type TaskState struct {
	TaskID    string
	Status    string // "running", "retrying", "succeeded", "failed", "timed out"
	Attempt   int
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel renders the per-task status table.
type TaskPaneModel struct {
	tasks     map[string]*TaskState // taskID -> state
	taskOrder []string              // insertion order for display
	width     int
	height    int
	focused   bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks: make(map[string]*TaskState),
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.TaskStartedEvent:
		state, ok := m.tasks[msg.ID]
		if !ok {
			state = &TaskState{TaskID: msg.ID, StartTime: msg.Timestamp}
			m.tasks[msg.ID] = state
			m.taskOrder = append(m.taskOrder, msg.ID)
		}
		state.Status = "running"
		state.Attempt = msg.Attempt

	case events.TaskRetryingEvent:
		if state, ok := m.tasks[msg.ID]; ok {
			state.Status = "retrying"
			state.Attempt = msg.Attempt
		}

	case events.TaskSucceededEvent:
		if state, ok := m.tasks[msg.ID]; ok {
			state.Status = "succeeded"
			state.Attempt = msg.Attempt
			state.Duration = msg.Duration
		}

	case events.TaskFailedEvent:
		if state, ok := m.tasks[msg.ID]; ok {
			state.Status = "failed"
			state.Attempt = msg.Attempts
		}

	case events.TaskTimedOutEvent:
		if state, ok := m.tasks[msg.ID]; ok {
			state.Status = "timed out"
			state.Attempt = msg.Attempts
		}
	}

	return m, nil
}

// SetSize sets the pane dimensions.
func (m *TaskPaneModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetFocused sets the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

// View renders the task table.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("waiting for tasks..."))
	}

	for _, id := range m.taskOrder {
		state := m.tasks[id]
		b.WriteString(fmt.Sprintf("%-24s %s  attempt %d",
			truncate(id, 24), renderStatus(state.Status), state.Attempt))
		if state.Duration > 0 {
			b.WriteString(fmt.Sprintf("  %s", state.Duration.Round(time.Millisecond)))
		}
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

// renderStatus returns the styled, fixed-width status label.
func renderStatus(status string) string {
	padded := fmt.Sprintf("%-9s", status)
	switch status {
	case "running":
		return StyleStatusRunning.Render(padded)
	case "retrying":
		return StyleStatusRetrying.Render(padded)
	case "succeeded":
		return StyleStatusSucceeded.Render(padded)
	case "failed":
		return StyleStatusFailed.Render(padded)
	case "timed out":
		return StyleStatusTimedOut.Render(padded)
	default:
		return StyleStatusPending.Render(padded)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
