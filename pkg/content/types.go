package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MessageRole defines the speaker of a dialogue turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleSystem    MessageRole = "system"
	RoleAssistant MessageRole = "assistant"
)

// ParameterType is the JSON type of an action parameter.
type ParameterType string

const (
	ParameterNumber  ParameterType = "number"
	ParameterString  ParameterType = "string"
	ParameterBoolean ParameterType = "boolean"
)

// GameDef is the root aggregate for a game.
type GameDef struct {
	UUID        string `json:"uuid,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Agents is omitted on partial game updates so the service keeps its own list.
	Agents     []AgentDef `json:"agents,omitempty"`
	SharedLore []Lore     `json:"shared_lore,omitempty"`
}

// GameDefSummary is the list-view projection of a GameDef.
type GameDefSummary struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentDef describes either a non-playable agent (persona fields) or a
// playable character (description + guardrail instructions).
type AgentDef struct {
	UUID          string   `json:"uuid,omitempty"`
	IsPlayable    bool     `json:"is_playable"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	CoreFacts     string   `json:"core_facts"`
	Instructions  string   `json:"instructions"`
	ExampleSpeech string   `json:"example_speech"`
	PersonalLore  []Memory `json:"personal_lore"`
	Actions       []Action `json:"actions"`
}

// Playable reports whether the agent is presented as a player character.
func (a AgentDef) Playable() bool { return a.IsPlayable }

// MarshalJSON sends empty lists instead of null, which the service rejects.
func (a AgentDef) MarshalJSON() ([]byte, error) {
	type plain AgentDef
	p := plain(a)
	if p.PersonalLore == nil {
		p.PersonalLore = []Memory{}
	}
	if p.Actions == nil {
		p.Actions = []Action{}
	}
	return json.Marshal(p)
}

// GameStage represents the flow of time in a game.
type GameStage struct {
	Stage int `json:"stage"`
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// Memory is a single remembered fact. Importance 0 lets the service decide.
type Memory struct {
	Importance  int        `json:"importance"`
	Description string     `json:"description"`
	Embedding   []float64  `json:"embedding,omitempty"`
	Timestamp   *GameStage `json:"timestamp,omitempty"`
}

// Lore is a shared fact visible only to the agents listed in KnownBy.
type Lore struct {
	KnownBy []string `json:"known_by"`
	Memory  Memory   `json:"memory"`
}

// IsKnownBy reports whether agentUUID may see this lore entry.
func (l Lore) IsKnownBy(agentUUID string) bool {
	for _, id := range l.KnownBy {
		if id == agentUUID {
			return true
		}
	}
	return false
}

// Parameter is one argument of an Action.
type Parameter struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Type        ParameterType `json:"type"`
	Enum        []string      `json:"enum"`
}

func (p Parameter) MarshalJSON() ([]byte, error) {
	type plain Parameter
	q := plain(p)
	if q.Enum == nil {
		q.Enum = []string{}
	}
	return json.Marshal(q)
}

// Action declares a callable the agent may invoke instead of speaking.
type Action struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	type plain Action
	p := plain(a)
	if p.Parameters == nil {
		p.Parameters = []Parameter{}
	}
	return json.Marshal(p)
}

// ActionCompletion is an action invocation chosen by the agent.
type ActionCompletion struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// String renders the invocation as name(k1=v1, k2=v2). Argument order follows
// map iteration and is not stable.
func (a ActionCompletion) String() string {
	args := make([]string, 0, len(a.Args))
	for k, v := range a.Args {
		args = append(args, fmt.Sprintf("%s=%v", k, v))
	}
	return a.Action + "(" + strings.Join(args, ", ") + ")"
}

// Message is one turn of dialogue.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Conversation gives context for a chat, most importantly who the agent
// believes it is talking to.
type Conversation struct {
	Correspondent     *AgentDef `json:"correspondent,omitempty"`
	SceneDescription  *string   `json:"scene_description,omitempty"`
	Instructions      *string   `json:"instructions,omitempty"`
	Queries           []string  `json:"queries,omitempty"`
	MemoriesToInclude *int      `json:"memories_to_include,omitempty"`
}

// StartChatBody is the request body of start_chat.
type StartChatBody struct {
	Conversation Conversation `json:"conversation"`
	History      []Message    `json:"history"`
}

// MessageWithDebug is the response of the chat endpoint.
type MessageWithDebug struct {
	Message Message   `json:"message"`
	Debug   []Message `json:"debug"`
}

// ActionCompletionWithDebug is the response of the act endpoint.
type ActionCompletionWithDebug struct {
	Action *ActionCompletion `json:"action"`
	Debug  []Message         `json:"debug"`
}

// InteractWithDebug is the response of the interact endpoint.
type InteractWithDebug struct {
	Response InteractResponse `json:"response"`
	Debug    []Message        `json:"debug"`
}

// InteractResponse holds either a text Message or an ActionCompletion.
// Exactly one of the pointers is set after decoding.
type InteractResponse struct {
	Message *Message
	Action  *ActionCompletion
}

// IsText reports whether the agent answered with text.
func (r InteractResponse) IsText() bool { return r.Message != nil }

// Empty reports whether the service sent neither text nor an action.
func (r InteractResponse) Empty() bool { return r.Message == nil && r.Action == nil }

func (r *InteractResponse) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		r.Message, r.Action = nil, nil
		return nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	if _, ok := keys["content"]; ok {
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		r.Message, r.Action = &m, nil
		return nil
	}
	var a ActionCompletion
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.Message, r.Action = nil, &a
	return nil
}

func (r InteractResponse) MarshalJSON() ([]byte, error) {
	switch {
	case r.Message != nil:
		return json.Marshal(r.Message)
	case r.Action != nil:
		return json.Marshal(r.Action)
	}
	return []byte("null"), nil
}
