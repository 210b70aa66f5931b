// Package watch renders a live terminal view over the engine's reconciled
// store, tailing one session as snapshots and deltas land.
package watch

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/williamcory/relay/internal/engine"
	"github.com/williamcory/relay/sdk/agent"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	roleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	reasoningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model tails the reconciled store. The session func indirection lets the
// caller follow whichever session the stream produces.
type Model struct {
	store   *engine.Store
	session func() string

	width  int
	height int
}

// New creates a watch model over the store. session reports the session ID
// to render; an empty return means nothing has streamed yet.
func New(store *engine.Store, session func() string) Model {
	if session == nil {
		session = func() string { return "" }
	}
	return Model{store: store, session: session}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	sessionID := m.session()
	if sessionID == "" {
		return statusStyle.Render("waiting for a session to stream...") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("session "+sessionID) + "\n\n")

	for _, msg := range m.store.Messages(sessionID) {
		b.WriteString(roleStyle.Render(msg.Role))
		if msg.ModelID != "" {
			b.WriteString(statusStyle.Render(" (" + msg.ModelID + ")"))
		}
		b.WriteString("\n")

		for _, part := range m.store.Parts(sessionID, msg.ID) {
			b.WriteString(renderPart(part))
		}
		b.WriteString("\n")
	}

	b.WriteString(statusStyle.Render("q to quit") + "\n")
	return b.String()
}

func renderPart(part agent.Part) string {
	switch {
	case part.IsText():
		return part.Text + "\n"
	case part.IsReasoning():
		return reasoningStyle.Render("~ "+part.Text) + "\n"
	case part.IsTool():
		title := part.Tool
		status := ""
		if part.State != nil {
			if part.State.Title != "" {
				title = part.State.Title
			}
			status = " [" + part.State.Status + "]"
		}
		return toolStyle.Render("$ "+title) + statusStyle.Render(status) + "\n"
	default:
		return ""
	}
}

// Run blocks on the watch program until the user quits.
func Run(store *engine.Store, session func() string) error {
	p := tea.NewProgram(New(store, session), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
