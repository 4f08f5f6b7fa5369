package lore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

// ErrSyncFailed marks a save that was stored on the game but could not be
// pushed into its live sessions.
var ErrSyncFailed = errors.New("lore saved but sessions not synced")

// GameSaver stores lore on a game definition and pushes the change into the
// game's live sessions.
type GameSaver struct {
	Client   *client.Client
	GameUUID string
}

func (s GameSaver) SaveLore(ctx context.Context, lore []content.Lore) error {
	game, err := s.Client.Games.Get(ctx, s.GameUUID)
	if err != nil {
		return fmt.Errorf("get game: %w", err)
	}
	game.SharedLore = lore
	if game.SharedLore == nil {
		game.SharedLore = []content.Lore{}
	}
	// The service keeps its own agent list when agents are omitted.
	game.Agents = nil
	if _, err := s.Client.Games.Update(ctx, s.GameUUID, *game, false); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if err := s.Client.Sessions.Sync(ctx, s.GameUUID); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	return nil
}
