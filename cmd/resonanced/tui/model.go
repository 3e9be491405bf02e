// Package tui renders a live web event stream in the terminal, following the
// a bubbletea/viewport/lipgloss TUI structure: an Elm-architecture Model fed
// external events through tea.Program.Send rather than reading stdin into a
// chat transcript.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Pharbi/arachnid/internal/ports"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	kindStyle  = map[ports.EventKind]lipgloss.Style{
		ports.EventWebCreated:        lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		ports.EventAgentSpawned:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		ports.EventSignalEmitted:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ports.EventSignalDelivered:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ports.EventAgentStateChanged: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		ports.EventValidationDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("135")),
		ports.EventWebConverged:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		ports.EventWebFailed:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
)

// EventMsg wraps one event received off the websocket for tea.Program.Send.
type EventMsg struct{ Event ports.Event }

// DisconnectedMsg reports the websocket reader goroutine exiting.
type DisconnectedMsg struct{ Err error }

// Model is the watch command's bubbletea model: a scrolling viewport of
// rendered events plus a connection status line.
type Model struct {
	webID      string
	viewport   viewport.Model
	lines      []string
	connected  bool
	disconnect error
	ready      bool
}

// New constructs a Model for webID, ready for tea.NewProgram.
func New(webID string) Model {
	return Model{webID: webID, connected: true}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case EventMsg:
		m.lines = append(m.lines, formatEvent(msg.Event))
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
	case DisconnectedMsg:
		m.connected = false
		m.disconnect = msg.Err
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	header := titleStyle.Render(fmt.Sprintf("watching web %s", m.webID))
	status := dimStyle.Render("connected — press q to quit")
	if !m.connected {
		status = dimStyle.Render(fmt.Sprintf("disconnected: %v", m.disconnect))
	}
	if !m.ready {
		return header + "\n" + status
	}
	return header + "\n" + m.viewport.View() + "\n" + status
}

func formatEvent(e ports.Event) string {
	style, ok := kindStyle[e.Kind]
	if !ok {
		style = dimStyle
	}
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("%s  %-22s agent=%s", ts.Format("15:04:05.000"), e.Kind, e.AgentID)
	return style.Render(line)
}
