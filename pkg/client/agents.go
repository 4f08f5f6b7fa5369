package client

import (
	"context"
	"net/http"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

// AgentService wraps the Agent Definitions endpoints.
type AgentService struct {
	c *Client
}

func (s *AgentService) Create(ctx context.Context, gameUUID, name string) (*content.AgentDef, error) {
	var out content.AgentDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    "/game/{game_uuid}/agent/create",
		Path:   map[string]string{"game_uuid": gameUUID},
		Query:  map[string]any{"agent_name": name},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AgentService) List(ctx context.Context, gameUUID string) ([]content.AgentDef, error) {
	var out []content.AgentDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/game/{game_uuid}/agent/list",
		Path:   map[string]string{"game_uuid": gameUUID},
	}, &out)
	return out, err
}

func (s *AgentService) Get(ctx context.Context, gameUUID, agentUUID string) (*content.AgentDef, error) {
	var out content.AgentDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/game/{game_uuid}/agent/{agent_uuid}",
		Path:   map[string]string{"game_uuid": gameUUID, "agent_uuid": agentUUID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the agent. The service keeps agentUUID regardless of def.UUID.
func (s *AgentService) Update(ctx context.Context, gameUUID, agentUUID string, def content.AgentDef) (*content.AgentDef, error) {
	var out content.AgentDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodPut,
		URL:    "/game/{game_uuid}/agent/{agent_uuid}",
		Path:   map[string]string{"game_uuid": gameUUID, "agent_uuid": agentUUID},
		Body:   def,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AgentService) Delete(ctx context.Context, gameUUID, agentUUID string) error {
	return s.c.Do(ctx, Request{
		Method: http.MethodDelete,
		URL:    "/game/{game_uuid}/agent/{agent_uuid}",
		Path:   map[string]string{"game_uuid": gameUUID, "agent_uuid": agentUUID},
	}, nil)
}
