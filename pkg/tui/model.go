// Package tui is the terminal chat tester: pick a player character, chat with
// the agent under test, inspect the prompt behind each reply, and ask the
// agent feeling queries.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

type state int

const (
	stateOpening state = iota
	stateSelectingPlayer
	stateChatting
	stateDebug
	stateQuery
)

type openedMsg struct{ err error }
type startedMsg struct{ err error }
type replyMsg struct {
	turn chat.Turn
	err  error
}
type scoreMsg struct {
	kind     string // "query" or "guardrail"
	question string
	score    content.Score
	err      error
}

// Model is the bubbletea model of the chat tester.
type Model struct {
	ctx       context.Context
	tester    *chat.Tester
	agentName string

	state  state
	cursor int
	width  int
	height int
	err    error
	status string

	// cancelSend aborts the in-flight interact call, if any.
	cancelSend context.CancelFunc
	// debugTurn is the transcript index shown in the debug view.
	debugTurn int
	// shown identifies the transcript state last rendered.
	shown string

	viewport viewport.Model
	textarea textarea.Model
	renderer *glamour.TermRenderer
}

// New returns the model for tester. agentName labels the agent's turns.
func New(ctx context.Context, tester *chat.Tester, agentName string) Model {
	ta := textarea.New()
	ta.Placeholder = "Say something..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	vp.SetContent("Creating session...")
	// Letters belong to the textarea.
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
		Up:       key.NewBinding(key.WithKeys("up")),
		Down:     key.NewBinding(key.WithKeys("down")),
	}

	if agentName == "" {
		agentName = "Agent"
	}
	return Model{
		ctx:       ctx,
		tester:    tester,
		agentName: agentName,
		state:     stateOpening,
		viewport:  vp,
		textarea:  ta,
		renderer:  newRenderer(80),
	}
}

// Use "light" style to avoid terminal queries that leak into input.
func newRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		slog.Warn("Failed to create markdown renderer", "error", err)
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.openCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	// Keys only reach the textarea where it takes input, so list navigation
	// does not leak into it.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting || m.state == stateQuery {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = max(msg.Height-m.textarea.Height()-4, 0)
		m.renderer = newRenderer(msg.Width - 4)
		m.refresh()

	case tea.KeyMsg:
		next, cmd := m.handleKey(msg)
		next.catchUp()
		return next, tea.Batch(append(cmds, cmd)...)

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Batch(cmds...)
		}
		m.err = nil
		m.state = stateSelectingPlayer
		m.cursor = 0
		m.refresh()

	case startedMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, chat.ErrSuperseded) {
				m.err = msg.err
			}
			return m, tea.Batch(cmds...)
		}
		m.err = nil
		m.status = "Chat started"
		m.state = stateChatting
		m.textarea.Placeholder = "Say something..."
		m.textarea.Focus()
		m.refresh()

	case replyMsg:
		m.cancelSend = nil
		switch {
		case errors.Is(msg.err, chat.ErrSuperseded), errors.Is(msg.err, client.ErrCanceled):
		case msg.err != nil:
			m.err = msg.err
		default:
			m.err = nil
		}
		m.refresh()

	case scoreMsg:
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.err = nil
		m.status = fmt.Sprintf("%s %q: %s", msg.kind, msg.question, formatScore(msg.score))
	}

	m.catchUp()
	return m, tea.Batch(cmds...)
}

// catchUp re-renders the transcript when the tester changed it from a
// command goroutine, e.g. the user turn appended while a reply is pending.
func (m *Model) catchUp() {
	if m.state != stateChatting {
		return
	}
	snap := m.tester.Snapshot()
	if fmt.Sprintf("%d/%t", len(snap.Turns), snap.Waiting) != m.shown {
		m.refresh()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.abortSend()
		return m, tea.Quit
	case tea.KeyEsc:
		switch m.state {
		case stateDebug, stateQuery:
			m.state = stateChatting
			m.textarea.Reset()
			m.textarea.Placeholder = "Say something..."
			m.refresh()
			return m, nil
		}
		m.abortSend()
		return m, tea.Quit
	}

	switch m.state {
	case stateSelectingPlayer:
		return m.handleSelectKey(msg)
	case stateChatting:
		return m.handleChatKey(msg)
	case stateDebug:
		return m.handleDebugKey(msg)
	case stateQuery:
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.textarea.Value())
			if q == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.status = "Asking..."
			return m, m.queryCmd(q)
		}
	}
	return m, nil
}

func (m Model) handleSelectKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	players := m.tester.Snapshot().Players
	switch msg.Type {
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(players)-1 {
			m.cursor++
		}
	case tea.KeyEnter:
		if len(players) > 0 {
			if err := m.tester.SelectPlayer(players[m.cursor].UUID); err != nil {
				m.err = err
				return m, nil
			}
		}
		m.status = "Starting chat..."
		return m, m.startCmd()
	}
	m.refresh()
	return m, nil
}

func (m Model) handleChatKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.textarea.Value())
		if text == "" || !m.tester.Snapshot().InputEnabled() {
			return m, nil
		}
		m.textarea.Reset()
		m.err = nil
		ctx, cancel := context.WithCancel(m.ctx)
		m.cancelSend = cancel
		return m, m.sendCmd(ctx, text)

	case tea.KeyCtrlR:
		m.abortSend()
		m.status = "Restarting chat..."
		return m, m.startCmd()

	case tea.KeyCtrlP:
		m.abortSend()
		m.state = stateSelectingPlayer
		m.cursor = 0
		m.refresh()
		return m, nil

	case tea.KeyCtrlD:
		turn, ok := m.lastResponse()
		if !ok {
			m.status = "No agent reply to inspect yet"
			return m, nil
		}
		m.debugTurn = turn
		m.state = stateDebug
		m.refresh()
		return m, nil

	case tea.KeyCtrlQ:
		m.state = stateQuery
		m.textarea.Reset()
		m.textarea.Placeholder = "Ask a feeling query, e.g. How happy are you?"
		return m, nil

	case tea.KeyCtrlG:
		text := strings.TrimSpace(m.textarea.Value())
		if text == "" {
			return m, nil
		}
		m.status = "Rating..."
		return m, m.guardrailCmd(text)
	}
	return m, nil
}

func (m Model) handleDebugKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	turns := m.tester.Snapshot().Turns
	step := 0
	switch msg.String() {
	case "left", "[":
		step = -1
	case "right", "]":
		step = 1
	}
	if step == 0 {
		return m, nil
	}
	for i := m.debugTurn + step; i >= 0 && i < len(turns); i += step {
		if turns[i].IsResponse() {
			m.debugTurn = i
			break
		}
	}
	m.refresh()
	return m, nil
}

func (m *Model) abortSend() {
	if m.cancelSend != nil {
		m.cancelSend()
		m.cancelSend = nil
	}
}

func (m Model) lastResponse() (int, bool) {
	turns := m.tester.Snapshot().Turns
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].IsResponse() {
			return i, true
		}
	}
	return 0, false
}

// Commands

func (m Model) openCmd() tea.Cmd {
	return func() tea.Msg {
		return openedMsg{err: m.tester.Open(m.ctx)}
	}
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.tester.Start(m.ctx)}
	}
}

func (m Model) sendCmd(ctx context.Context, text string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.tester.Send(ctx, text)
		return replyMsg{turn: turn, err: err}
	}
}

func (m Model) queryCmd(question string) tea.Cmd {
	return func() tea.Msg {
		score, err := m.tester.Query(m.ctx, question)
		return scoreMsg{kind: "query", question: question, score: score, err: err}
	}
}

func (m Model) guardrailCmd(message string) tea.Cmd {
	return func() tea.Msg {
		score, err := m.tester.Guardrail(m.ctx, message)
		return scoreMsg{kind: "guardrail", question: message, score: score, err: err}
	}
}

func formatScore(s content.Score) string {
	if !s.Known() {
		return s.String()
	}
	return fmt.Sprintf("%d/5", int(s))
}

// Run runs the chat tester until the user quits.
func Run(ctx context.Context, tester *chat.Tester, agentName string) error {
	p := tea.NewProgram(New(ctx, tester, agentName), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
