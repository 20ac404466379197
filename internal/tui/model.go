package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskgraph/internal/events"
)

// Model is the root Bubble Tea model for watch mode.
type Model struct {
	taskPane     TaskPaneModel
	progressPane ProgressPaneModel
	logPane      LogPaneModel
	eventSub     <-chan events.Event
	width        int
	height       int
	finished     bool
	quitting     bool
}

// New creates a new watch-mode model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(bus *events.Bus) Model {
	return Model{
		taskPane:     NewTaskPaneModel(),
		progressPane: NewProgressPaneModel(),
		logPane:      NewLogPaneModel(),
		eventSub:     bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.logPane, cmd = m.logPane.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.Event:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd)
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)

		if _, ok := msg.(events.RunFinishedEvent); ok {
			m.finished = true
		}

		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// Finished reports whether the run has completed.
func (m Model) Finished() bool {
	return m.finished
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.progressPane.View())
	bottom := m.logPane.View()

	helpBar := HelpView()
	if m.finished {
		helpBar = HelpView() + StyleTitle.Render("  run finished, press q to exit")
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, bottom, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	availableHeight := m.height - 1
	topHeight := (availableHeight * 55) / 100
	bottomHeight := availableHeight - topHeight

	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth

	m.taskPane.SetSize(leftWidth, topHeight)
	m.progressPane.SetSize(rightWidth, topHeight)
	m.logPane.SetSize(m.width, bottomHeight)

	// Only the log pane takes keyboard focus.
	m.taskPane.SetFocused(false)
	m.progressPane.SetFocused(false)
	m.logPane.SetFocused(true)
}
