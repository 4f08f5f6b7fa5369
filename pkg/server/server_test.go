package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/client/clienttest"
	"github.com/nstogner/eastworld-studio/pkg/content"
	"github.com/nstogner/eastworld-studio/pkg/transcript"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	svc   *clienttest.Service
	store *transcript.Store
	front *httptest.Server
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := clienttest.New()
	backend := svc.Start(t)

	store, err := transcript.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>editor</html>"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(static, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "assets", "app.js"), []byte("console.log(1)"), 0644))

	s, err := New(Config{Target: backend.URL, StaticDir: static, Transcripts: store})
	require.NoError(t, err)
	front := httptest.NewServer(s.Handler())
	t.Cleanup(front.Close)

	return &fixture{svc: svc, store: store, front: front, dir: static}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestProxyStripsPrefix(t *testing.T) {
	f := newFixture(t)
	c := client.New(client.Config{BaseURL: f.front.URL + "/api", Token: "secret"})

	game, err := c.Games.Create(context.Background(), "New Game")
	require.NoError(t, err)
	assert.Equal(t, "New Game", game.Name)

	last := f.svc.Last()
	assert.Equal(t, "/game/create", last.Path)
	assert.Equal(t, "game_name=New%20Game", last.RawQuery)
	assert.Equal(t, "Bearer secret", last.Header.Get("Authorization"))

	_, err = c.Games.Get(context.Background(), "a b/c")
	assert.True(t, client.IsNotFound(err))
	assert.Equal(t, "/game/a%20b%2Fc", f.svc.Last().Path)
}

func TestProxyBackendDown(t *testing.T) {
	s, err := New(Config{Target: "http://127.0.0.1:1"})
	require.NoError(t, err)
	front := httptest.NewServer(s.Handler())
	t.Cleanup(front.Close)

	code, body := get(t, front.URL+"/api/game/list")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, "Content Service unavailable")
}

func TestNewRejectsBadTarget(t *testing.T) {
	_, err := New(Config{Target: "not a url"})
	assert.Error(t, err)
}

func TestStaticFallback(t *testing.T) {
	f := newFixture(t)

	code, body := get(t, f.front.URL+"/assets/app.js")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "console.log(1)", body)

	code, body = get(t, f.front.URL+"/game/123/agent/456")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "editor")

	code, _ = get(t, f.front.URL+"/dev/unknown")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.front.URL+"/api/game/list", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, f.svc.Requests())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	get(t, f.front.URL+"/api/game/list")

	// The request is observed after its response is written.
	require.Eventually(t, func() bool {
		code, body := get(t, f.front.URL+"/metrics")
		return code == http.StatusOK &&
			strings.Contains(body, `eastworld_devserver_requests_total{code="200",method="GET",route="/api/*path"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func record(t *testing.T, store *transcript.Store) (chat.Info, string) {
	t.Helper()
	info := chat.Info{GameUUID: "g1", SessionUUID: "s1", AgentUUID: "a1"}
	require.NoError(t, store.ChatStarted(info))
	require.NoError(t, store.TurnAppended(info, 0, chat.Turn{Role: content.RoleUser, Content: "Hello"}, nil))
	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	return info, list[0].ID
}

func TestTranscriptRoutes(t *testing.T) {
	f := newFixture(t)
	_, id := record(t, f.store)

	code, body := get(t, f.front.URL+"/dev/transcripts")
	require.Equal(t, http.StatusOK, code)
	var list []transcript.Meta
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	code, body = get(t, f.front.URL+"/dev/transcripts?session=other")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	code, body = get(t, f.front.URL+"/dev/transcripts/"+id)
	require.Equal(t, http.StatusOK, code)
	var tr transcriptResponse
	require.NoError(t, json.Unmarshal([]byte(body), &tr))
	assert.Equal(t, "s1", tr.Header.Chat.SessionUUID)
	require.Len(t, tr.Entries, 1)
	assert.Equal(t, "Hello", tr.Entries[0].Turn.Content)

	code, _ = get(t, f.front.URL+"/dev/transcripts/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWatchTranscriptStreamsNewTurns(t *testing.T) {
	f := newFixture(t)
	info, id := record(t, f.store)

	wsURL := "ws" + strings.TrimPrefix(f.front.URL, "http") + "/dev/transcripts/" + id + "/watch"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var e transcript.Entry
	require.NoError(t, ws.ReadJSON(&e))
	assert.Equal(t, "Hello", e.Turn.Content)

	debug := []content.Message{{Role: content.RoleSystem, Content: "prompt"}}
	require.NoError(t, f.store.TurnAppended(info, 1, chat.Turn{Role: content.RoleAssistant, Content: "Hi"}, debug))

	require.NoError(t, ws.ReadJSON(&e))
	assert.Equal(t, 1, e.Index)
	assert.Equal(t, "Hi", e.Turn.Content)
	require.Len(t, e.Debug, 1)
}
