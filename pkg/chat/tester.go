// Package chat implements the agent chat tester: a session against the
// Content Service, a player character the agent believes it is talking to,
// and a transcript with per-turn debug traces.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

// State of a Tester.
type State int

const (
	NoSession State = iota
	SessionCreated
	ChatStarted
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no-session"
	case SessionCreated:
		return "session-created"
	case ChatStarted:
		return "chat-started"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNoSession      = errors.New("no session")
	ErrChatNotStarted = errors.New("chat not started")
	ErrWaiting        = errors.New("waiting for a response")
	ErrUnknownPlayer  = errors.New("not a playable character")
	ErrEmptyMessage   = errors.New("empty message")
	// ErrEmptyResponse is returned by Send when the service answered with
	// neither text nor an action. The user turn is removed.
	ErrEmptyResponse = errors.New("service sent an empty response")
	// ErrSuperseded is returned by Send when the chat was restarted or the
	// session reopened while the request was in flight. The response is
	// dropped.
	ErrSuperseded = errors.New("response superseded by restart")
)

// Sessions is the part of the Content Service the tester talks to.
type Sessions interface {
	Create(ctx context.Context, gameUUID string) (string, error)
	StartChat(ctx context.Context, sessionUUID, agent, correspondent string, body content.StartChatBody) error
	Interact(ctx context.Context, sessionUUID, agent, message string, sendDebug bool) (*content.InteractWithDebug, error)
	Guardrail(ctx context.Context, sessionUUID, agent, message string) (content.Score, error)
	Query(ctx context.Context, sessionUUID, agent string, queries []string) ([]content.Score, error)
}

// Agents lists a game's agents.
type Agents interface {
	List(ctx context.Context, gameUUID string) ([]content.AgentDef, error)
}

// Info identifies a started chat.
type Info struct {
	GameUUID    string `json:"game_uuid"`
	SessionUUID string `json:"session_uuid"`
	AgentUUID   string `json:"agent_uuid"`
	PlayerUUID  string `json:"player_uuid,omitempty"`
}

// Recorder observes a tester's transcript. Errors are logged and otherwise
// ignored.
type Recorder interface {
	ChatStarted(info Info) error
	TurnAppended(info Info, index int, turn Turn, debug []content.Message) error
}

type Config struct {
	Sessions  Sessions
	Agents    Agents
	GameUUID  string
	AgentUUID string
	Recorder  Recorder
	Logger    *slog.Logger
}

// FromClient fills Sessions and Agents from c.
func (cfg Config) FromClient(c *client.Client) Config {
	cfg.Sessions = c.Sessions
	cfg.Agents = c.Agents
	return cfg
}

// Tester holds the chat state for one agent under test. It is safe for
// concurrent use.
type Tester struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	session string
	players []content.AgentDef
	player  string
	turns   []Turn
	debug   [][]content.Message
	waiting bool
	// gen changes whenever the transcript is reset. Responses issued under an
	// older gen are dropped.
	gen int
}

func New(cfg Config) *Tester {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{
		cfg:    cfg,
		logger: logger.With("agent", cfg.AgentUUID, "game", cfg.GameUUID),
	}
}

// Open creates a session and fetches the agent list concurrently. The
// playable characters are every playable agent other than the one under
// test, and the first of them is selected.
func (t *Tester) Open(ctx context.Context) error {
	var (
		session string
		agents  []content.AgentDef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = t.cfg.Sessions.Create(gctx, t.cfg.GameUUID)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		agents, err = t.cfg.Agents.List(gctx, t.cfg.GameUUID)
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return client.ErrCanceled
		}
		return err
	}

	players := PlayableCharacters(agents, t.cfg.AgentUUID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = SessionCreated
	t.session = session
	t.players = players
	t.player = ""
	if len(players) > 0 {
		t.player = players[0].UUID
	}
	t.reset()
	t.logger.Info("Session created", "session", session, "players", len(players))
	return nil
}

// PlayableCharacters filters agents down to those that can play against
// agentUUID.
func PlayableCharacters(agents []content.AgentDef, agentUUID string) []content.AgentDef {
	var out []content.AgentDef
	for _, a := range agents {
		if a.Playable() && a.UUID != agentUUID {
			out = append(out, a)
		}
	}
	return out
}

// SelectPlayer chooses the character the agent will talk to. It takes effect
// on the next Start.
func (t *Tester) SelectPlayer(uuid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == NoSession {
		return ErrNoSession
	}
	for _, p := range t.players {
		if p.UUID == uuid {
			t.player = uuid
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownPlayer, uuid)
}

// Start starts, or restarts, the chat. The transcript and debug traces are
// cleared; the session and player selection are kept.
func (t *Tester) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state == NoSession {
		t.mu.Unlock()
		return ErrNoSession
	}
	session := t.session
	var body content.StartChatBody
	for _, p := range t.players {
		if p.UUID == t.player {
			body.Conversation.Correspondent = &p
		}
	}
	body.History = []content.Message{}
	t.mu.Unlock()

	if err := t.cfg.Sessions.StartChat(ctx, session, t.cfg.AgentUUID, "", body); err != nil {
		return err
	}

	t.mu.Lock()
	if t.session != session {
		t.mu.Unlock()
		return ErrSuperseded
	}
	t.state = ChatStarted
	t.reset()
	info := t.info()
	t.mu.Unlock()

	t.logger.Info("Chat started", "session", session, "player", info.PlayerUUID)
	if t.cfg.Recorder != nil {
		if err := t.cfg.Recorder.ChatStarted(info); err != nil {
			t.logger.Error("Failed to record chat start", "error", err)
		}
	}
	return nil
}

// Send appends the user's message, asks the agent to interact and appends
// its response. On failure the user turn is removed again.
func (t *Tester) Send(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSuffix(text, "<br>")

	t.mu.Lock()
	if t.state != ChatStarted {
		t.mu.Unlock()
		return Turn{}, ErrChatNotStarted
	}
	if t.waiting {
		t.mu.Unlock()
		return Turn{}, ErrWaiting
	}
	if text == "" {
		t.mu.Unlock()
		return Turn{}, ErrEmptyMessage
	}
	user := Turn{Role: content.RoleUser, Content: text}
	idx := len(t.turns)
	t.turns = append(t.turns, user)
	t.debug = append(t.debug, nil)
	t.waiting = true
	gen, session := t.gen, t.session
	t.mu.Unlock()

	resp, err := t.cfg.Sessions.Interact(ctx, session, t.cfg.AgentUUID, text, true)

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		t.logger.Debug("Dropping response after restart", "session", session)
		return Turn{}, ErrSuperseded
	}
	t.waiting = false
	if err == nil && resp.Response.Empty() {
		err = ErrEmptyResponse
	}
	if err != nil {
		t.turns = t.turns[:idx]
		t.debug = t.debug[:idx]
		t.mu.Unlock()
		if !errors.Is(err, client.ErrCanceled) {
			t.logger.Error("Interact failed", "session", session, "error", err)
		}
		return Turn{}, err
	}
	reply := responseTurn(resp.Response)
	trace := resp.Debug
	if trace == nil {
		trace = []content.Message{}
	}
	t.turns = append(t.turns, reply)
	t.debug = append(t.debug, trace)
	info := t.info()
	t.mu.Unlock()

	if t.cfg.Recorder != nil {
		for i, turn := range []Turn{user, reply} {
			var d []content.Message
			if i == 1 {
				d = trace
			}
			if err := t.cfg.Recorder.TurnAppended(info, idx+i, turn, d); err != nil {
				t.logger.Error("Failed to record turn", "error", err)
			}
		}
	}
	return reply, nil
}

// Debug returns the prompt trace behind a response turn. User turns and
// indices out of range report false.
func (t *Tester) Debug(turn int) ([]content.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if turn < 0 || turn >= len(t.turns) || !t.turns[turn].IsResponse() {
		return nil, false
	}
	return append([]content.Message{}, t.debug[turn]...), true
}

// Query asks the agent a single feeling query, e.g. "How happy are you?".
// ScoreUnknown means the service's model failed.
func (t *Tester) Query(ctx context.Context, question string) (content.Score, error) {
	session, err := t.sessionUUID()
	if err != nil {
		return content.ScoreUnknown, err
	}
	scores, err := t.cfg.Sessions.Query(ctx, session, t.cfg.AgentUUID, []string{question})
	if err != nil {
		return content.ScoreUnknown, err
	}
	if len(scores) == 0 {
		return content.ScoreUnknown, nil
	}
	return scores[0], nil
}

// Guardrail rates how appropriate message would be for the player to say.
func (t *Tester) Guardrail(ctx context.Context, message string) (content.Score, error) {
	session, err := t.sessionUUID()
	if err != nil {
		return content.ScoreUnknown, err
	}
	return t.cfg.Sessions.Guardrail(ctx, session, t.cfg.AgentUUID, message)
}

func (t *Tester) sessionUUID() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == NoSession {
		return "", ErrNoSession
	}
	return t.session, nil
}

// Snapshot is a copy of the tester state for rendering.
type Snapshot struct {
	State       State
	SessionUUID string
	AgentUUID   string
	Players     []content.AgentDef
	PlayerUUID  string
	Turns       []Turn
	Waiting     bool
}

// InputEnabled reports whether the user may type a message.
func (s Snapshot) InputEnabled() bool {
	return s.State == ChatStarted && !s.Waiting
}

// Player returns the selected player character.
func (s Snapshot) Player() (content.AgentDef, bool) {
	for _, p := range s.Players {
		if p.UUID == s.PlayerUUID {
			return p, true
		}
	}
	return content.AgentDef{}, false
}

func (t *Tester) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:       t.state,
		SessionUUID: t.session,
		AgentUUID:   t.cfg.AgentUUID,
		Players:     append([]content.AgentDef(nil), t.players...),
		PlayerUUID:  t.player,
		Turns:       append([]Turn(nil), t.turns...),
		Waiting:     t.waiting,
	}
}

// reset clears the transcript. Callers hold t.mu.
func (t *Tester) reset() {
	t.turns = nil
	t.debug = nil
	t.waiting = false
	t.gen++
}

func (t *Tester) info() Info {
	return Info{
		GameUUID:    t.cfg.GameUUID,
		SessionUUID: t.session,
		AgentUUID:   t.cfg.AgentUUID,
		PlayerUUID:  t.player,
	}
}
