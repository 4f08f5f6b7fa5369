package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

// GameService wraps the Game Definitions endpoints.
type GameService struct {
	c *Client
}

// Create creates an empty game named name.
func (s *GameService) Create(ctx context.Context, name string) (*content.GameDef, error) {
	var out content.GameDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    "/game/create",
		Query:  map[string]any{"game_name": name},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns summaries of every game.
func (s *GameService) List(ctx context.Context) ([]content.GameDefSummary, error) {
	var out []content.GameDefSummary
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/game/list",
	}, &out)
	return out, err
}

// Get fetches a full game definition.
func (s *GameService) Get(ctx context.Context, uuid string) (*content.GameDef, error) {
	var out content.GameDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/game/{uuid}",
		Path:   map[string]string{"uuid": uuid},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update stores def under uuid. Unless overwriteAgents is set the service
// keeps its existing agent list.
func (s *GameService) Update(ctx context.Context, uuid string, def content.GameDef, overwriteAgents bool) (*content.GameDef, error) {
	var out content.GameDef
	err := s.c.Do(ctx, Request{
		Method: http.MethodPut,
		URL:    "/game/{uuid}/update",
		Path:   map[string]string{"uuid": uuid},
		Query:  map[string]any{"overwrite_agents": overwriteAgents},
		Body:   def,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a game.
func (s *GameService) Delete(ctx context.Context, uuid string) error {
	return s.c.Do(ctx, Request{
		Method: http.MethodDelete,
		URL:    "/game/{uuid}",
		Path:   map[string]string{"uuid": uuid},
	}, nil)
}

// Lore returns the game's shared lore.
func (s *GameService) Lore(ctx context.Context, uuid string) ([]content.Lore, error) {
	var out []content.Lore
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/game/{uuid}/lore",
		Path:   map[string]string{"uuid": uuid},
	}, &out)
	return out, err
}

// GetJSON returns the game exactly as the service encodes it, for export.
func (s *GameService) GetJSON(ctx context.Context, uuid string) (json.RawMessage, error) {
	var out json.RawMessage
	err := s.c.Do(ctx, Request{
		Method: http.MethodGet,
		URL:    "/game/{uuid}/json",
		Path:   map[string]string{"uuid": uuid},
	}, &out)
	return out, err
}

// PutJSON creates or replaces a game (agents included) from its JSON encoding.
// The game's own uuid decides which game is written.
func (s *GameService) PutJSON(ctx context.Context, jsonedGame string) error {
	return s.c.Do(ctx, Request{
		Method: http.MethodPut,
		URL:    "/game/json",
		Query:  map[string]any{"jsoned_game": jsonedGame},
	}, nil)
}
