package lore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

const (
	// NewDescription is the placeholder text of a freshly added entry.
	NewDescription = "Click to edit!"
	// NewImportance is the importance given to added entries.
	NewImportance = 10
)

// Saver persists the complete shared lore list. There is no partial update.
type Saver interface {
	SaveLore(ctx context.Context, lore []content.Lore) error
}

// Editor holds a game's shared lore and writes the whole list back on every
// edit. Edits are serialized. A failed save leaves the list unchanged, but a
// save whose session sync failed is kept and reported with ErrSyncFailed.
type Editor struct {
	saver  Saver
	logger *slog.Logger

	mu  sync.Mutex
	all []content.Lore
}

func NewEditor(existing []content.Lore, saver Saver) *Editor {
	return &Editor{
		saver:  saver,
		logger: slog.Default().With("component", "lore"),
		all:    cloneAll(existing),
	}
}

// Lore returns a copy of the full list.
func (e *Editor) Lore() []content.Lore {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.all)
}

// Visible returns the entries known by all selected agents.
func (e *Editor) Visible(selected []string) []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Visible(cloneAll(e.all), selected)
}

// Add prepends a placeholder entry. It is saved with the next edit.
func (e *Editor) Add() {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := content.Lore{
		KnownBy: []string{},
		Memory:  content.Memory{Description: NewDescription, Importance: NewImportance},
	}
	e.all = append([]content.Lore{entry}, e.all...)
}

func (e *Editor) SetDescription(ctx context.Context, index int, description string) error {
	return e.edit(ctx, index, func(next []content.Lore) []content.Lore {
		next[index].Memory.Description = description
		return next
	})
}

func (e *Editor) SetKnownBy(ctx context.Context, index int, agentUUIDs []string) error {
	return e.edit(ctx, index, func(next []content.Lore) []content.Lore {
		next[index].KnownBy = append([]string{}, agentUUIDs...)
		return next
	})
}

func (e *Editor) Delete(ctx context.Context, index int) error {
	return e.edit(ctx, index, func(next []content.Lore) []content.Lore {
		return append(next[:index], next[index+1:]...)
	})
}

func (e *Editor) edit(ctx context.Context, index int, apply func([]content.Lore) []content.Lore) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.all) {
		return fmt.Errorf("lore index %d out of range [0,%d)", index, len(e.all))
	}
	next := apply(cloneAll(e.all))
	err := e.saver.SaveLore(ctx, next)
	switch {
	case errors.Is(err, ErrSyncFailed):
		e.all = next
		e.logger.Warn("Lore saved but sessions not synced", "error", err)
		return err
	case err != nil:
		e.logger.Error("Failed to save lore", "error", err)
		return fmt.Errorf("save lore: %w", err)
	}
	e.all = next
	return nil
}

func cloneAll(in []content.Lore) []content.Lore {
	out := make([]content.Lore, len(in))
	for i, l := range in {
		out[i] = l
		out[i].KnownBy = append([]string{}, l.KnownBy...)
		if l.Memory.Embedding != nil {
			out[i].Memory.Embedding = append([]float64{}, l.Memory.Embedding...)
		}
	}
	return out
}
