// Package clienttest provides an in-memory Content Service for tests.
package clienttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Reply is a scripted agent response for interact, chat and act.
type Reply struct {
	Message *content.Message
	Action  *content.ActionCompletion
	Debug   []content.Message
	// NoDebug sends "debug": null even when a trace was requested.
	NoDebug bool
}

// Text builds a text Reply.
func Text(s string) Reply {
	return Reply{Message: &content.Message{Role: content.RoleAssistant, Content: s}}
}

// Invoke builds an action Reply.
func Invoke(name string, args map[string]any) Reply {
	return Reply{Action: &content.ActionCompletion{Action: name, Args: args}}
}

// Recorded is a request received by the Service.
type Recorded struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type session struct {
	game  content.GameDef
	chats map[string]*content.StartChatBody
}

// Service is a fake Content Service. The zero value is not usable; call New.
type Service struct {
	// Token, when set, is required as a bearer token on every request.
	Token string
	// IDs generates identifiers for games, agents and sessions. kind is one
	// of "g", "a" or "s". Defaults to random uuids.
	IDs func(kind string) string

	mu         sync.Mutex
	intercept  func(r *http.Request)
	guardrail  content.Score
	queryScore content.Score
	games      map[string]*content.GameDef
	order      []string
	sessions   map[string]*session
	replies    []Reply
	requests   []Recorded
	syncs      map[string]int

	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates an empty Service.
func New() *Service {
	s := &Service{
		IDs:      func(string) string { return uuid.NewString() },
		games:    make(map[string]*content.GameDef),
		sessions: make(map[string]*session),
		syncs:    make(map[string]int),
		mux:      http.NewServeMux(),
		logger:   slog.Default().With("component", "clienttest"),
	}
	s.routes()
	return s
}

// Sequential returns an ID generator producing g1, g2, a1, s1 and so on.
func Sequential() func(kind string) string {
	var mu sync.Mutex
	counts := map[string]int{}
	return func(kind string) string {
		mu.Lock()
		defer mu.Unlock()
		counts[kind]++
		return kind + strconv.Itoa(counts[kind])
	}
}

// Start serves s on a local httptest.Server that is closed with the test.
func (s *Service) Start(t interface{ Cleanup(func()) }) *httptest.Server {
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv
}

// Script queues replies returned in order by interact, chat and act. When the
// queue is empty the agent echoes the message.
func (s *Service) Script(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Intercept installs fn to run before each request is handled, outside the
// Service lock. Tests use it to hold requests in flight.
func (s *Service) Intercept(fn func(r *http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intercept = fn
}

// SetScores sets the values returned by guardrail and by query and rate.
// Zero means 3.
func (s *Service) SetScores(guardrail, query content.Score) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guardrail = guardrail
	s.queryScore = query
}

// PutGame stores def, assigning ids where missing, and returns the stored copy.
func (s *Service) PutGame(def content.GameDef) content.GameDef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if def.UUID == "" {
		def.UUID = s.IDs("g")
	}
	for i := range def.Agents {
		if def.Agents[i].UUID == "" {
			def.Agents[i].UUID = s.IDs("a")
		}
	}
	s.store(def)
	return clone(def)
}

// Game returns the stored game.
func (s *Service) Game(id string) (content.GameDef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return content.GameDef{}, false
	}
	return clone(*g), true
}

// Chat returns the start_chat body most recently accepted for agent in session.
func (s *Service) Chat(sessionID, agent string) (content.StartChatBody, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return content.StartChatBody{}, false
	}
	body, ok := sess.chats[agent]
	if !ok {
		return content.StartChatBody{}, false
	}
	return *body, true
}

// Syncs counts /session/sync calls for a game.
func (s *Service) Syncs(gameID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs[gameID]
}

// Requests returns every request received so far.
func (s *Service) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// Last returns the most recent request.
func (s *Service) Last() Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Recorded{}
	}
	return s.requests[len(s.requests)-1]
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.requests = append(s.requests, Recorded{
		Method:   r.Method,
		Path:     r.URL.EscapedPath(),
		RawQuery: r.URL.RawQuery,
		Header:   r.Header.Clone(),
		Body:     body,
	})
	s.mu.Unlock()

	s.mu.Lock()
	intercept := s.intercept
	s.mu.Unlock()
	if intercept != nil {
		intercept(r)
	}
	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	s.logger.Debug("Request", "method", r.Method, "path", r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

func (s *Service) routes() {
	s.mux.HandleFunc("POST /game/create", s.handleCreateGame)
	s.mux.HandleFunc("GET /game/list", s.handleListGames)
	s.mux.HandleFunc("GET /game/{uuid}", s.handleGetGame)
	s.mux.HandleFunc("GET /game/{uuid}/lore", s.handleGetLore)
	s.mux.HandleFunc("GET /game/{uuid}/json", s.handleGetGame)
	s.mux.HandleFunc("PUT /game/json", s.handlePutJSON)
	s.mux.HandleFunc("PUT /game/{uuid}/update", s.handleUpdateGame)
	s.mux.HandleFunc("DELETE /game/{uuid}", s.handleDeleteGame)

	s.mux.HandleFunc("POST /game/{game_uuid}/agent/create", s.handleCreateAgent)
	s.mux.HandleFunc("GET /game/{game_uuid}/agent/list", s.handleListAgents)
	s.mux.HandleFunc("GET /game/{game_uuid}/agent/{agent_uuid}", s.handleGetAgent)
	s.mux.HandleFunc("PUT /game/{game_uuid}/agent/{agent_uuid}", s.handleUpdateAgent)
	s.mux.HandleFunc("DELETE /game/{game_uuid}/agent/{agent_uuid}", s.handleDeleteAgent)

	s.mux.HandleFunc("POST /session/create", s.handleCreateSession)
	s.mux.HandleFunc("GET /session/list", s.handleListSessions)
	s.mux.HandleFunc("GET /session/{session_uuid}/active", s.handleSessionActive)
	s.mux.HandleFunc("POST /session/{session_uuid}/start_chat", s.handleStartChat)
	s.mux.HandleFunc("POST /session/{session_uuid}/chat", s.handleTurn("chat"))
	s.mux.HandleFunc("POST /session/{session_uuid}/interact", s.handleTurn("interact"))
	s.mux.HandleFunc("POST /session/{session_uuid}/act", s.handleTurn("act"))
	s.mux.HandleFunc("POST /session/{session_uuid}/guardrail", s.handleGuardrail)
	s.mux.HandleFunc("POST /session/{session_uuid}/query", s.handleQuery)
	s.mux.HandleFunc("PUT /session/sync", s.handleSync)

	s.mux.HandleFunc("GET /llm/embed", s.handleEmbed)
	s.mux.HandleFunc("GET /llm/rate", s.handleRate)
	s.mux.HandleFunc("GET /action.json", s.handleActionSchema)
	s.mux.HandleFunc("GET /auth/check", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, map[string]bool{"isAuthenticated": true})
	})
}

// Games

func (s *Service) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	name, ok := requireQuery(w, r, "game_name")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	def := content.GameDef{UUID: s.IDs("g"), Name: name, Agents: []content.AgentDef{}, SharedLore: []content.Lore{}}
	s.store(def)
	jsonResponse(w, def)
}

func (s *Service) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.GameDefSummary, 0, len(s.order))
	for _, id := range s.order {
		g := s.games[id]
		out = append(out, content.GameDefSummary{UUID: g.UUID, Name: g.Name, Description: g.Description})
	}
	jsonResponse(w, out)
}

func (s *Service) handleGetGame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("uuid"))
	if !ok {
		return
	}
	jsonResponse(w, g)
}

func (s *Service) handleGetLore(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("uuid"))
	if !ok {
		return
	}
	jsonResponse(w, nonNil(g.SharedLore))
}

func (s *Service) handlePutJSON(w http.ResponseWriter, r *http.Request) {
	raw, ok := requireQuery(w, r, "jsoned_game")
	if !ok {
		return
	}
	var def content.GameDef
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		validation(w, issue(err.Error(), "value_error.json", "query", "jsoned_game"))
		return
	}
	if def.UUID == "" {
		validation(w, issue("field required", "value_error.missing", "query", "jsoned_game", "uuid"))
		return
	}
	if iss := validateGame(def); len(iss) > 0 {
		validation(w, iss...)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(def)
	jsonResponse(w, nil)
}

func (s *Service) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")
	var def content.GameDef
	if !decodeBody(w, r, &def) {
		return
	}
	if iss := validateGame(def); len(iss) > 0 {
		validation(w, iss...)
		return
	}
	overwrite := r.URL.Query().Get("overwrite_agents") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()
	def.UUID = id
	if old, ok := s.games[id]; ok && !overwrite && len(old.Agents) > 0 {
		def.Agents = old.Agents
	}
	s.store(def)
	jsonResponse(w, def)
}

func (s *Service) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("uuid")
	delete(s.games, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	jsonResponse(w, nil)
}

// Agents

func (s *Service) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	name, ok := requireQuery(w, r, "agent_name")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("game_uuid"))
	if !ok {
		return
	}
	agent := content.AgentDef{
		UUID:         s.IDs("a"),
		Name:         name,
		PersonalLore: []content.Memory{},
		Actions:      []content.Action{},
	}
	g.Agents = append(g.Agents, agent)
	jsonResponse(w, agent)
}

func (s *Service) handleListAgents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("game_uuid"))
	if !ok {
		return
	}
	jsonResponse(w, nonNil(g.Agents))
}

func (s *Service) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("game_uuid"))
	if !ok {
		return
	}
	i := agentIndex(g.Agents, r.PathValue("agent_uuid"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Agent not found")
		return
	}
	jsonResponse(w, g.Agents[i])
}

func (s *Service) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var agent content.AgentDef
	if !decodeBody(w, r, &agent) {
		return
	}
	if iss := validateAgent(agent, "body"); len(iss) > 0 {
		validation(w, iss...)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("game_uuid"))
	if !ok {
		return
	}
	id := r.PathValue("agent_uuid")
	i := agentIndex(g.Agents, id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Agent not found")
		return
	}
	agent.UUID = id
	g.Agents[i] = agent
	jsonResponse(w, agent)
}

func (s *Service) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, r.PathValue("game_uuid"))
	if !ok {
		return
	}
	if i := agentIndex(g.Agents, r.PathValue("agent_uuid")); i >= 0 {
		g.Agents = append(g.Agents[:i], g.Agents[i+1:]...)
	}
	jsonResponse(w, nil)
}

// Sessions

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	gameID, ok := requireQuery(w, r, "game_uuid")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, gameID)
	if !ok {
		return
	}
	id := s.IDs("s")
	s.sessions[id] = &session{game: clone(*g), chats: make(map[string]*content.StartChatBody)}
	jsonResponse(w, id)
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	gameID, ok := requireQuery(w, r, "game_uuid")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for id, sess := range s.sessions {
		if sess.game.UUID == gameID {
			out = append(out, id)
		}
	}
	jsonResponse(w, out)
}

func (s *Service) handleSessionActive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[r.PathValue("session_uuid")]
	jsonResponse(w, ok)
}

func (s *Service) handleStartChat(w http.ResponseWriter, r *http.Request) {
	agentRef, ok := requireQuery(w, r, "agent")
	if !ok {
		return
	}
	var body content.StartChatBody
	if !decodeOptionalBody(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.session(w, r.PathValue("session_uuid"))
	if !ok {
		return
	}
	agent, ok := findAgent(w, sess, agentRef)
	if !ok {
		return
	}
	if ref := r.URL.Query().Get("correspondent"); ref != "" {
		corr, ok := findAgent(w, sess, ref)
		if !ok {
			return
		}
		body.Conversation = content.Conversation{Correspondent: &corr}
	}
	if body.History == nil {
		body.History = []content.Message{}
	}
	sess.chats[agent.UUID] = &body
	jsonResponse(w, nil)
}

func (s *Service) handleTurn(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentRef, ok := requireQuery(w, r, "agent")
		if !ok {
			return
		}
		message := r.URL.Query().Get("message")
		if kind != "act" && !r.URL.Query().Has("message") {
			validation(w, issue("field required", "value_error.missing", "query", "message"))
			return
		}
		sendDebug := r.URL.Query().Get("send_debug") == "true"

		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.session(w, r.PathValue("session_uuid"))
		if !ok {
			return
		}
		agent, ok := findAgent(w, sess, agentRef)
		if !ok {
			return
		}
		chat := sess.chats[agent.UUID]
		if chat == nil {
			chat = &content.StartChatBody{History: []content.Message{}}
			sess.chats[agent.UUID] = chat
		}

		reply := s.next(kind, agent, message)
		debug := reply.Debug
		if debug == nil {
			debug = prompt(agent, chat, message)
		}
		debug = nonNil(debug)
		if !sendDebug {
			debug = []content.Message{}
		}
		if reply.NoDebug {
			debug = nil
		}
		chat.History = append(chat.History, content.Message{Role: content.RoleUser, Content: message})
		if reply.Message != nil {
			chat.History = append(chat.History, *reply.Message)
		}

		switch kind {
		case "chat":
			msg := content.Message{Role: content.RoleAssistant}
			if reply.Message != nil {
				msg = *reply.Message
			} else if reply.Action != nil {
				msg.Content = reply.Action.String()
			}
			jsonResponse(w, content.MessageWithDebug{Message: msg, Debug: debug})
		case "act":
			jsonResponse(w, content.ActionCompletionWithDebug{Action: reply.Action, Debug: debug})
		default:
			jsonResponse(w, content.InteractWithDebug{
				Response: content.InteractResponse{Message: reply.Message, Action: reply.Action},
				Debug:    debug,
			})
		}
	}
}

func (s *Service) next(kind string, agent content.AgentDef, message string) Reply {
	if len(s.replies) > 0 {
		r := s.replies[0]
		s.replies = s.replies[1:]
		return r
	}
	if kind == "act" {
		if len(agent.Actions) == 0 {
			return Reply{}
		}
		return Invoke(agent.Actions[0].Name, map[string]any{})
	}
	return Text("You said: " + message)
}

func (s *Service) handleGuardrail(w http.ResponseWriter, r *http.Request) {
	agentRef, ok := requireQuery(w, r, "agent")
	if !ok {
		return
	}
	if _, ok := requireQuery(w, r, "message"); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.session(w, r.PathValue("session_uuid"))
	if !ok {
		return
	}
	if _, ok := findAgent(w, sess, agentRef); !ok {
		return
	}
	jsonResponse(w, scoreOr(s.guardrail))
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	agentRef, ok := requireQuery(w, r, "agent")
	if !ok {
		return
	}
	var queries []string
	if !decodeBody(w, r, &queries) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.session(w, r.PathValue("session_uuid"))
	if !ok {
		return
	}
	if _, ok := findAgent(w, sess, agentRef); !ok {
		return
	}
	out := make([]content.Score, len(queries))
	for i := range out {
		out[i] = scoreOr(s.queryScore)
	}
	jsonResponse(w, out)
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	gameID, ok := requireQuery(w, r, "game_uuid")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.game(w, gameID)
	if !ok {
		return
	}
	for _, sess := range s.sessions {
		if sess.game.UUID == gameID {
			sess.game = clone(*g)
		}
	}
	s.syncs[gameID]++
	jsonResponse(w, nil)
}

// Utility

func (s *Service) handleEmbed(w http.ResponseWriter, r *http.Request) {
	text, ok := requireQuery(w, r, "text")
	if !ok {
		return
	}
	vec := make([]float64, 4)
	for i, c := range []byte(text) {
		vec[i%len(vec)] += float64(c) / 255
	}
	jsonResponse(w, vec)
}

func (s *Service) handleRate(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireQuery(w, r, "question"); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	jsonResponse(w, scoreOr(s.queryScore))
}

// ActionSchema is the document served at /action.json.
const ActionSchema = `{"title": "Action", "type": "object", "properties": {"name": {"title": "Name", "pattern": "^[a-zA-Z0-9_-]{1,64}$", "type": "string"}, "description": {"title": "Description", "type": "string"}, "parameters": {"title": "Parameters", "type": "array", "items": {"$ref": "#/definitions/Parameter"}}}, "required": ["name", "description", "parameters"], "definitions": {"Parameter": {"title": "Parameter", "type": "object", "properties": {"name": {"title": "Name", "pattern": "^[a-zA-Z0-9_-]{1,64}$", "type": "string"}, "description": {"title": "Description", "type": "string"}, "type": {"title": "Type", "default": "string", "enum": ["number", "string", "boolean"], "type": "string"}, "enum": {"title": "Enum", "type": "array", "items": {"type": "string"}}}, "required": ["name", "description"]}}}`

func (s *Service) handleActionSchema(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, ActionSchema)
}

// Helpers. Callers of game, session and store hold s.mu.

func (s *Service) store(def content.GameDef) {
	if _, ok := s.games[def.UUID]; !ok {
		s.order = append(s.order, def.UUID)
	}
	g := clone(def)
	s.games[def.UUID] = &g
}

func (s *Service) game(w http.ResponseWriter, id string) (*content.GameDef, bool) {
	g, ok := s.games[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Game not found")
		return nil, false
	}
	return g, true
}

func (s *Service) session(w http.ResponseWriter, id string) (*session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return sess, true
}

func findAgent(w http.ResponseWriter, sess *session, ref string) (content.AgentDef, bool) {
	for _, a := range sess.game.Agents {
		if a.UUID == ref {
			return a, true
		}
	}
	for _, a := range sess.game.Agents {
		if a.Name == ref {
			return a, true
		}
	}
	writeError(w, http.StatusNotFound, "Agent not found")
	return content.AgentDef{}, false
}

func agentIndex(agents []content.AgentDef, id string) int {
	for i, a := range agents {
		if a.UUID == id {
			return i
		}
	}
	return -1
}

func prompt(agent content.AgentDef, chat *content.StartChatBody, message string) []content.Message {
	system := fmt.Sprintf("You are %s. %s", agent.Name, agent.Description)
	if c := chat.Conversation.Correspondent; c != nil {
		system += fmt.Sprintf(" You are talking to %s.", c.Name)
	}
	out := []content.Message{{Role: content.RoleSystem, Content: system}}
	out = append(out, chat.History...)
	return append(out, content.Message{Role: content.RoleUser, Content: message})
}

func validateGame(def content.GameDef) []issueJSON {
	var out []issueJSON
	for i, a := range def.Agents {
		for _, iss := range validateAgent(a, "body") {
			iss.Loc = append([]any{"body", "agents", i}, iss.Loc[1:]...)
			out = append(out, iss)
		}
	}
	return out
}

func validateAgent(a content.AgentDef, root string) []issueJSON {
	var out []issueJSON
	if a.Name == "" {
		out = append(out, issue("ensure this value has at least 1 characters", "value_error.any_str.min_length", root, "name"))
	}
	for i, act := range a.Actions {
		if !nameRe.MatchString(act.Name) {
			out = append(out, issue(`string does not match regex "^[a-zA-Z0-9_-]{1,64}$"`, "value_error.str.regex", root, "actions", i, "name"))
		}
		for j, p := range act.Parameters {
			if !nameRe.MatchString(p.Name) {
				out = append(out, issue(`string does not match regex "^[a-zA-Z0-9_-]{1,64}$"`, "value_error.str.regex", root, "actions", i, "parameters", j, "name"))
			}
			switch p.Type {
			case "", content.ParameterNumber, content.ParameterString, content.ParameterBoolean:
			default:
				out = append(out, issue("unexpected value; permitted: 'number', 'string', 'boolean'", "value_error.const", root, "actions", i, "parameters", j, "type"))
			}
		}
	}
	return out
}

func scoreOr(s content.Score) content.Score {
	if s == 0 {
		return 3
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func clone(def content.GameDef) content.GameDef {
	data, _ := json.Marshal(def)
	var out content.GameDef
	_ = json.Unmarshal(data, &out)
	return out
}
