package client

import (
	"context"
	"net/http"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

// SessionService wraps the Game Sessions endpoints. The agent argument may be
// an agent uuid or an agent name.
type SessionService struct {
	c *Client
}

// Create starts a live session for a game and returns its uuid.
func (s *SessionService) Create(ctx context.Context, gameUUID string) (string, error) {
	var out string
	err := s.c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    "/session/create",
		Query:  map[string]any{"game_uuid": gameUUID},
	}, &out)
	return out, err
}

// List returns the uuids of the game's live sessions.
func (s *SessionService) List(ctx context.Context, gameUUID string) ([]string, error) {
	var out []string
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/session/list",
		Query:  map[string]any{"game_uuid": gameUUID},
	}, &out)
	return out, err
}

// Active reports whether the service still holds the session.
func (s *SessionService) Active(ctx context.Context, sessionUUID string) (bool, error) {
	var out bool
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/session/{session_uuid}/active",
		Path:   map[string]string{"session_uuid": sessionUUID},
	}, &out)
	return out, err
}

// StartChat resets the agent's conversation. A non-empty correspondent
// (uuid or name) overrides body.Conversation on the service side.
func (s *SessionService) StartChat(ctx context.Context, sessionUUID, agent, correspondent string, body content.StartChatBody) error {
	if body.History == nil {
		body.History = []content.Message{}
	}
	return s.c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    "/session/{session_uuid}/start_chat",
		Path:   map[string]string{"session_uuid": sessionUUID},
		Query:  map[string]any{"agent": agent, "correspondent": optional(correspondent)},
		Body:   body,
	}, nil)
}

// Chat sends message and returns a free-text reply.
func (s *SessionService) Chat(ctx context.Context, sessionUUID, agent, message string, sendDebug bool) (*content.MessageWithDebug, error) {
	var out content.MessageWithDebug
	if err := s.c.Do(ctx, s.turn("/session/{session_uuid}/chat", sessionUUID, agent, message, sendDebug), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Interact sends message and returns either text or an action invocation.
func (s *SessionService) Interact(ctx context.Context, sessionUUID, agent, message string, sendDebug bool) (*content.InteractWithDebug, error) {
	var out content.InteractWithDebug
	if err := s.c.Do(ctx, s.turn("/session/{session_uuid}/interact", sessionUUID, agent, message, sendDebug), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Act forces the agent to respond with an action.
func (s *SessionService) Act(ctx context.Context, sessionUUID, agent, message string, sendDebug bool) (*content.ActionCompletionWithDebug, error) {
	var out content.ActionCompletionWithDebug
	if err := s.c.Do(ctx, s.turn("/session/{session_uuid}/act", sessionUUID, agent, message, sendDebug), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) turn(url, sessionUUID, agent, message string, sendDebug bool) Request {
	return Request{
		Method: http.MethodPost,
		URL:    url,
		Path:   map[string]string{"session_uuid": sessionUUID},
		Query:  map[string]any{"agent": agent, "message": message, "send_debug": sendDebug},
	}
}

// Guardrail rates how appropriate a player message is. Check Score.Known:
// the service returns ScoreUnknown when its model fails.
func (s *SessionService) Guardrail(ctx context.Context, sessionUUID, agent, message string) (content.Score, error) {
	var out content.Score
	err := s.c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    "/session/{session_uuid}/guardrail",
		Path:   map[string]string{"session_uuid": sessionUUID},
		Query:  map[string]any{"agent": agent, "message": message},
	}, &out)
	if err != nil {
		return content.ScoreUnknown, err
	}
	return out, nil
}

// Query asks how the agent feels, one score per query.
func (s *SessionService) Query(ctx context.Context, sessionUUID, agent string, queries []string) ([]content.Score, error) {
	var out []content.Score
	err := s.c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    "/session/{session_uuid}/query",
		Path:   map[string]string{"session_uuid": sessionUUID},
		Query:  map[string]any{"agent": agent},
		Body:   queries,
	}, &out)
	return out, err
}

// Sync pushes the stored game definition into the game's live sessions.
func (s *SessionService) Sync(ctx context.Context, gameUUID string) error {
	return s.c.Do(ctx, Request{
		Method: http.MethodPut,
		URL:    "/session/sync",
		Query:  map[string]any{"game_uuid": gameUUID},
	}, nil)
}
