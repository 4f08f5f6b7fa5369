package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	actionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Italic(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

func (m Model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("Error: %v", m.err))
	}
	var statusView string
	if m.status != "" {
		statusView = statusStyle.Render(m.status)
	}

	switch m.state {
	case stateOpening:
		return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Chat Tester"), "", "Creating session...", errorView)

	case stateSelectingPlayer:
		return lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Select Player"),
			"",
			m.playerList(),
			"",
			dimStyle.Render("Enter to start the chat, Esc to quit."),
			statusView,
			errorView,
		)

	case stateDebug:
		return lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(fmt.Sprintf("Prompt behind turn %d", m.debugTurn)),
			"",
			m.viewport.View(),
			"",
			dimStyle.Render("[ and ] move between replies, Esc returns to the chat."),
		)
	}

	snap := m.tester.Snapshot()
	title := "Chat with " + m.agentName
	if p, ok := snap.Player(); ok {
		title += " as " + p.Name
	}
	help := "Enter send · Ctrl+R restart · Ctrl+P player · Ctrl+D debug · Ctrl+Q query · Ctrl+G guardrail"
	if m.state == stateQuery {
		help = "Enter ask · Esc back"
	}
	var waiting string
	if snap.Waiting {
		waiting = dimStyle.Render(m.agentName + " is thinking...")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		"",
		m.viewport.View(),
		waiting,
		statusView,
		errorView,
		m.textarea.View(),
		dimStyle.Render(help),
	)
}

func (m Model) playerList() string {
	players := m.tester.Snapshot().Players
	if len(players) == 0 {
		return "No playable characters in this game. The agent will not know who it is talking to."
	}
	var lines []string
	for i, p := range players {
		cursor := " "
		line := p.Name
		if p.Description != "" {
			line += dimStyle.Render(" - " + p.Description)
		}
		if m.cursor == i {
			cursor = ">"
			line = selectedItemStyle.Render(p.Name)
		}
		lines = append(lines, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// refresh re-renders the viewport for the current state.
func (m *Model) refresh() {
	snap := m.tester.Snapshot()
	m.shown = fmt.Sprintf("%d/%t", len(snap.Turns), snap.Waiting)

	switch m.state {
	case stateDebug:
		trace, _ := m.tester.Debug(m.debugTurn)
		m.viewport.SetContent(m.renderTrace(trace))
		m.viewport.GotoTop()
	case stateChatting, stateQuery:
		m.viewport.SetContent(m.renderTurns(snap.Turns))
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTurns(turns []chat.Turn) string {
	if len(turns) == 0 {
		return dimStyle.Render("Say something to start the conversation.")
	}
	var sb strings.Builder
	for _, t := range turns {
		switch t.Role {
		case content.RoleUser:
			sb.WriteString(userStyle.Render("You:"))
			sb.WriteString("\n")
			sb.WriteString(t.Content)
			sb.WriteString("\n\n")
		case chat.RoleAction:
			sb.WriteString(agentStyle.Render(m.agentName + ":"))
			sb.WriteString("\n")
			sb.WriteString(actionStyle.Render("* " + t.Content + " *"))
			sb.WriteString("\n\n")
		default:
			sb.WriteString(agentStyle.Render(m.agentName + ":"))
			sb.WriteString("\n")
			sb.WriteString(m.markdown(t.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderTrace renders the messages sent to the model as markdown, one
// section per message.
func (m Model) renderTrace(trace []content.Message) string {
	if len(trace) == 0 {
		return dimStyle.Render("The service returned no prompt for this turn.")
	}
	var md strings.Builder
	for _, msg := range trace {
		fmt.Fprintf(&md, "## %s\n\n%s\n\n", msg.Role, msg.Content)
	}
	return m.markdown(md.String())
}

func (m Model) markdown(s string) string {
	if m.renderer == nil {
		return s + "\n"
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}
