package chat_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/client/clienttest"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

type fixture struct {
	svc    *clienttest.Service
	client *client.Client
	game   content.GameDef
}

// newFixture stores a game with one NPC (a1) and the given agents after it.
func newFixture(t *testing.T, others ...content.AgentDef) *fixture {
	t.Helper()
	svc := clienttest.New()
	svc.IDs = clienttest.Sequential()
	srv := svc.Start(t)
	agents := append([]content.AgentDef{{Name: "Dolores"}}, others...)
	game := svc.PutGame(content.GameDef{Name: "Westworld", Agents: agents})
	return &fixture{svc: svc, client: client.New(client.Config{BaseURL: srv.URL}), game: game}
}

func (f *fixture) tester(rec chat.Recorder) *chat.Tester {
	return chat.New(chat.Config{
		GameUUID:  f.game.UUID,
		AgentUUID: f.game.Agents[0].UUID,
		Recorder:  rec,
	}.FromClient(f.client))
}

func TestOpenFiltersPlayableCharacters(t *testing.T) {
	f := newFixture(t,
		content.AgentDef{Name: "William", IsPlayable: true},
		content.AgentDef{Name: "Teddy"},
		content.AgentDef{Name: "Logan", IsPlayable: true},
	)
	tr := f.tester(nil)
	assert.Equal(t, chat.NoSession, tr.Snapshot().State)

	require.NoError(t, tr.Open(context.Background()))
	snap := tr.Snapshot()
	assert.Equal(t, chat.SessionCreated, snap.State)
	assert.Equal(t, "s1", snap.SessionUUID)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, "William", snap.Players[0].Name)
	assert.Equal(t, "Logan", snap.Players[1].Name)
	assert.Equal(t, snap.Players[0].UUID, snap.PlayerUUID)
	assert.False(t, snap.InputEnabled())
}

func TestPlayableCharactersExcludesAgentUnderTest(t *testing.T) {
	agents := []content.AgentDef{
		{UUID: "a1", Name: "self", IsPlayable: true},
		{UUID: "a2", Name: "npc"},
		{UUID: "a3", Name: "player", IsPlayable: true},
	}
	got := chat.PlayableCharacters(agents, "a1")
	require.Len(t, got, 1)
	assert.Equal(t, "a3", got[0].UUID)
	assert.Empty(t, chat.PlayableCharacters(agents[:2], "a1"))
}

func TestSendBeforeStartIsRejected(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	_, err := tr.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, chat.ErrChatNotStarted)
	assert.ErrorIs(t, tr.Start(context.Background()), chat.ErrNoSession)

	require.NoError(t, tr.Open(context.Background()))
	_, err = tr.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, chat.ErrChatNotStarted)
	assert.Empty(t, tr.Snapshot().Turns)
}

func TestStartSendsSelectedCorrespondent(t *testing.T) {
	f := newFixture(t, content.AgentDef{Name: "William", IsPlayable: true})
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	assert.Equal(t, "agent="+f.game.Agents[0].UUID, f.svc.Last().RawQuery)
	body, ok := f.svc.Chat("s1", f.game.Agents[0].UUID)
	require.True(t, ok)
	require.NotNil(t, body.Conversation.Correspondent)
	assert.Equal(t, "William", body.Conversation.Correspondent.Name)
	assert.Empty(t, body.History)
	assert.True(t, tr.Snapshot().InputEnabled())
}

func TestStartWithoutPlayerSendsEmptyConversation(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))
	assert.JSONEq(t, `{"conversation":{},"history":[]}`, string(f.svc.Last().Body))
}

func TestSelectPlayer(t *testing.T) {
	f := newFixture(t,
		content.AgentDef{Name: "William", IsPlayable: true},
		content.AgentDef{Name: "Logan", IsPlayable: true},
	)
	tr := f.tester(nil)
	assert.ErrorIs(t, tr.SelectPlayer("a2"), chat.ErrNoSession)
	require.NoError(t, tr.Open(context.Background()))

	require.NoError(t, tr.SelectPlayer(f.game.Agents[2].UUID))
	assert.Equal(t, f.game.Agents[2].UUID, tr.Snapshot().PlayerUUID)
	p, ok := tr.Snapshot().Player()
	require.True(t, ok)
	assert.Equal(t, "Logan", p.Name)

	assert.ErrorIs(t, tr.SelectPlayer(f.game.Agents[0].UUID), chat.ErrUnknownPlayer)
	assert.Equal(t, f.game.Agents[2].UUID, tr.Snapshot().PlayerUUID)
}

func TestSendAppendsTwoTurnsPerRoundTrip(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	f.svc.Script(
		clienttest.Reply{
			Message: &content.Message{Role: content.RoleAssistant, Content: "Hi there"},
			Debug:   []content.Message{{Role: content.RoleSystem, Content: "You are Dolores."}},
		},
		clienttest.Invoke("draw", map[string]any{"weapon": "revolver"}),
	)

	reply, err := tr.Send(ctx, "Hello<br>")
	require.NoError(t, err)
	assert.Equal(t, content.RoleAssistant, reply.Role)
	assert.Equal(t, "Hi there", reply.Content)
	assert.Contains(t, f.svc.Last().RawQuery, "message=Hello&send_debug=true")

	snap := tr.Snapshot()
	require.Len(t, snap.Turns, 2)
	assert.Equal(t, chat.Turn{Role: content.RoleUser, Content: "Hello"}, snap.Turns[0])
	assert.False(t, snap.Waiting)

	reply, err = tr.Send(ctx, "Draw!")
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAction, reply.Role)
	assert.Equal(t, "draw(weapon=revolver)", reply.Content)
	assert.Len(t, tr.Snapshot().Turns, 4)

	trace, ok := tr.Debug(1)
	require.True(t, ok)
	require.Len(t, trace, 1)
	assert.Equal(t, "You are Dolores.", trace[0].Content)

	_, ok = tr.Debug(0)
	assert.False(t, ok, "user turns carry no trace")
	_, ok = tr.Debug(9)
	assert.False(t, ok)

	// The fake sends its own prompt when no trace is scripted.
	trace, ok = tr.Debug(3)
	require.True(t, ok)
	assert.NotEmpty(t, trace)
}

func TestRestartClearsTranscriptKeepsSelection(t *testing.T) {
	f := newFixture(t,
		content.AgentDef{Name: "William", IsPlayable: true},
		content.AgentDef{Name: "Logan", IsPlayable: true},
	)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.SelectPlayer(f.game.Agents[2].UUID))
	require.NoError(t, tr.Start(ctx))
	_, err := tr.Send(ctx, "Hello")
	require.NoError(t, err)

	before := tr.Snapshot()
	require.NoError(t, tr.Start(ctx))
	after := tr.Snapshot()

	assert.Equal(t, chat.ChatStarted, after.State)
	assert.Empty(t, after.Turns)
	assert.Equal(t, before.SessionUUID, after.SessionUUID)
	assert.Equal(t, before.PlayerUUID, after.PlayerUUID)
	_, ok := tr.Debug(1)
	assert.False(t, ok)
}

func TestFailedSendRollsBackUserTurn(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	// The live session no longer knows the agent, so interact answers 404.
	require.NoError(t, f.client.Agents.Delete(ctx, f.game.UUID, f.game.Agents[0].UUID))
	require.NoError(t, f.client.Sessions.Sync(ctx, f.game.UUID))

	_, err := tr.Send(ctx, "Hello")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))

	snap := tr.Snapshot()
	assert.Empty(t, snap.Turns)
	assert.False(t, snap.Waiting)
	assert.True(t, snap.InputEnabled())
}

func TestMissingTraceIsStoredEmpty(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	f.svc.Script(clienttest.Reply{
		Message: &content.Message{Role: content.RoleAssistant, Content: "Hi"},
		NoDebug: true,
	})
	_, err := tr.Send(ctx, "Hello")
	require.NoError(t, err)

	trace, ok := tr.Debug(1)
	require.True(t, ok)
	assert.NotNil(t, trace)
	assert.Len(t, trace, 0)
}

func TestNullResponseRollsBackUserTurn(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	// An empty reply is sent as "response": null.
	f.svc.Script(clienttest.Reply{})
	_, err := tr.Send(ctx, "Hello")
	assert.ErrorIs(t, err, chat.ErrEmptyResponse)

	snap := tr.Snapshot()
	assert.Empty(t, snap.Turns)
	assert.False(t, snap.Waiting)

	reply, err := tr.Send(ctx, "Hello again")
	require.NoError(t, err)
	assert.Equal(t, "You said: Hello again", reply.Content)
	assert.Len(t, tr.Snapshot().Turns, 2)
}

func TestCanceledSendLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	entered := make(chan struct{})
	f.svc.Intercept(func(r *http.Request) {
		close(entered)
		<-r.Context().Done()
	})

	call := client.Go(ctx, func(ctx context.Context) (chat.Turn, error) {
		return tr.Send(ctx, "Hello")
	})
	<-entered
	assert.True(t, tr.Snapshot().Waiting)
	assert.False(t, tr.Snapshot().InputEnabled())
	_, err := tr.Send(ctx, "again")
	assert.ErrorIs(t, err, chat.ErrWaiting)

	call.Cancel()
	_, err = call.Wait()
	assert.ErrorIs(t, err, client.ErrCanceled)
	assert.True(t, call.Canceled())

	snap := tr.Snapshot()
	assert.Empty(t, snap.Turns)
	assert.False(t, snap.Waiting)
}

func TestResponseAfterRestartIsDropped(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.svc.Intercept(func(r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/interact") {
			once.Do(func() { close(entered) })
			<-release
		}
	})

	errc := make(chan error, 1)
	go func() {
		_, err := tr.Send(ctx, "Hello")
		errc <- err
	}()
	<-entered
	require.NoError(t, tr.Start(ctx))
	close(release)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, chat.ErrSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return")
	}
	snap := tr.Snapshot()
	assert.Empty(t, snap.Turns)
	assert.True(t, snap.InputEnabled())
}

func TestQueryAndGuardrail(t *testing.T) {
	f := newFixture(t)
	tr := f.tester(nil)
	ctx := context.Background()

	_, err := tr.Query(ctx, "How happy are you?")
	assert.ErrorIs(t, err, chat.ErrNoSession)

	require.NoError(t, tr.Open(ctx))
	f.svc.SetScores(0, 5)
	score, err := tr.Query(ctx, "How happy are you?")
	require.NoError(t, err)
	assert.Equal(t, content.Score(5), score)
	assert.JSONEq(t, `["How happy are you?"]`, string(f.svc.Last().Body))

	f.svc.SetScores(content.ScoreUnknown, 5)
	score, err = tr.Guardrail(ctx, "Nice hat")
	require.NoError(t, err)
	assert.False(t, score.Known())
}

type memRecorder struct {
	mu     sync.Mutex
	starts []chat.Info
	turns  []chat.Turn
	traces [][]content.Message
	fail   bool
}

func (m *memRecorder) ChatStarted(info chat.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, info)
	return nil
}

func (m *memRecorder) TurnAppended(info chat.Info, index int, turn chat.Turn, debug []content.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	m.traces = append(m.traces, debug)
	if m.fail {
		return errors.New("disk full")
	}
	return nil
}

func TestRecorderObservesTranscript(t *testing.T) {
	f := newFixture(t, content.AgentDef{Name: "William", IsPlayable: true})
	rec := &memRecorder{fail: true}
	tr := f.tester(rec)
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	require.NoError(t, tr.Start(ctx))
	_, err := tr.Send(ctx, "Hello")
	require.NoError(t, err, "recorder errors do not fail the chat")

	require.Len(t, rec.starts, 1)
	assert.Equal(t, "s1", rec.starts[0].SessionUUID)
	assert.Equal(t, f.game.Agents[1].UUID, rec.starts[0].PlayerUUID)
	require.Len(t, rec.turns, 2)
	assert.Equal(t, content.RoleUser, rec.turns[0].Role)
	assert.Nil(t, rec.traces[0])
	assert.NotEmpty(t, rec.traces[1])
}
