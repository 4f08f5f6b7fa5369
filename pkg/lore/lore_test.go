package lore_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/client/clienttest"
	"github.com/nstogner/eastworld-studio/pkg/content"
	"github.com/nstogner/eastworld-studio/pkg/lore"
)

func entry(desc string, knownBy ...string) content.Lore {
	return content.Lore{KnownBy: knownBy, Memory: content.Memory{Description: desc}}
}

func descriptions(ls []content.Lore) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Memory.Description
	}
	return out
}

var sample = []content.Lore{
	entry("river", "a1", "a2"),
	entry("mine", "a2"),
	entry("fort", "a1", "a2", "a3"),
	entry("secret"),
}

func TestFilterRequiresAllSelected(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		want     []string
	}{
		{"empty selection shows all", nil, []string{"river", "mine", "fort", "secret"}},
		{"single agent", []string{"a1"}, []string{"river", "fort"}},
		{"two agents", []string{"a1", "a2"}, []string{"river", "fort"}},
		{"three agents", []string{"a1", "a2", "a3"}, []string{"fort"}},
		{"unknown agent", []string{"a9"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, descriptions(lore.Filter(sample, tt.selected)))
		})
	}
}

func TestFilterProperty(t *testing.T) {
	selections := [][]string{nil, {"a1"}, {"a2"}, {"a3"}, {"a1", "a3"}, {"a2", "a3"}}
	for _, sel := range selections {
		shown := map[string]bool{}
		for _, l := range lore.Filter(sample, sel) {
			shown[l.Memory.Description] = true
		}
		for _, l := range sample {
			all := true
			for _, id := range sel {
				if !l.IsKnownBy(id) {
					all = false
				}
			}
			assert.Equal(t, all, shown[l.Memory.Description], "selection %v, lore %q", sel, l.Memory.Description)
		}
	}
}

func TestFilterAny(t *testing.T) {
	assert.Equal(t, []string{"river", "mine", "fort"}, descriptions(lore.FilterAny(sample, []string{"a2", "a3"})))
	assert.Len(t, lore.FilterAny(sample, nil), 4)
}

func TestForAgentAndVisible(t *testing.T) {
	assert.Equal(t, []string{"fort"}, descriptions(lore.ForAgent(sample, "a3")))

	entries := lore.Visible(sample, []string{"a1"})
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, 2, entries[1].Index)

	entries = lore.VisibleAny(sample, []string{"a3"})
	require.Len(t, entries, 1)
	assert.Equal(t, "fort", entries[0].Lore.Memory.Description)
}

type recordingSaver struct {
	saves [][]content.Lore
	err   error
}

func (r *recordingSaver) SaveLore(ctx context.Context, l []content.Lore) error {
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, l)
	return nil
}

func TestEditorSavesWholeArray(t *testing.T) {
	saver := &recordingSaver{}
	ed := lore.NewEditor(sample, saver)
	ctx := context.Background()

	ed.Add()
	assert.Empty(t, saver.saves, "adding does not save")
	got := ed.Lore()
	require.Len(t, got, 5)
	assert.Equal(t, lore.NewDescription, got[0].Memory.Description)
	assert.Equal(t, lore.NewImportance, got[0].Memory.Importance)

	require.NoError(t, ed.SetDescription(ctx, 0, "The maze is not meant for you"))
	require.Len(t, saver.saves, 1)
	assert.Len(t, saver.saves[0], 5)
	assert.Equal(t, "The maze is not meant for you", saver.saves[0][0].Memory.Description)

	require.NoError(t, ed.SetKnownBy(ctx, 0, []string{"a1", "a3"}))
	require.Len(t, saver.saves, 2)
	assert.Equal(t, []string{"a1", "a3"}, saver.saves[1][0].KnownBy)
	assert.Len(t, saver.saves[1], 5)

	require.NoError(t, ed.Delete(ctx, 1))
	require.Len(t, saver.saves, 3)
	assert.Equal(t, []string{"The maze is not meant for you", "mine", "fort", "secret"}, descriptions(saver.saves[2]))

	// Earlier saves are not aliased by later edits.
	assert.Len(t, saver.saves[1], 5)
	assert.Equal(t, "river", saver.saves[1][1].Memory.Description)

	assert.Error(t, ed.Delete(ctx, 10))
	assert.Len(t, saver.saves, 3)
}

func TestEditorKeepsStateOnFailedSave(t *testing.T) {
	saver := &recordingSaver{err: errors.New("boom")}
	ed := lore.NewEditor(sample, saver)

	err := ed.SetDescription(context.Background(), 0, "changed")
	require.Error(t, err)
	assert.Equal(t, "river", ed.Lore()[0].Memory.Description)
}

func TestEditorKeepsEditWhenOnlySyncFails(t *testing.T) {
	saver := &recordingSaver{err: fmt.Errorf("%w: %w", lore.ErrSyncFailed, errors.New("boom"))}
	ed := lore.NewEditor(sample, saver)

	err := ed.SetDescription(context.Background(), 0, "changed")
	assert.ErrorIs(t, err, lore.ErrSyncFailed)
	assert.Equal(t, "changed", ed.Lore()[0].Memory.Description)
}

func TestGameSaverReportsSyncFailure(t *testing.T) {
	svc := clienttest.New()
	svc.Token = "secret"
	// Sync requests lose their credentials and are rejected.
	svc.Intercept(func(r *http.Request) {
		if r.URL.Path == "/session/sync" {
			r.Header.Del("Authorization")
		}
	})
	srv := svc.Start(t)
	c := client.New(client.Config{BaseURL: srv.URL, Token: "secret"})
	game := svc.PutGame(content.GameDef{Name: "Westworld", SharedLore: sample})

	ed := lore.NewEditor(game.SharedLore, lore.GameSaver{Client: c, GameUUID: game.UUID})
	err := ed.SetDescription(context.Background(), 1, "silver mine")
	require.ErrorIs(t, err, lore.ErrSyncFailed)

	assert.Equal(t, "silver mine", ed.Lore()[1].Memory.Description)
	stored, ok := svc.Game(game.UUID)
	require.True(t, ok)
	assert.Equal(t, "silver mine", stored.SharedLore[1].Memory.Description)
	assert.Zero(t, svc.Syncs(game.UUID))
}

func TestGameSaverUpdatesAndSyncs(t *testing.T) {
	svc := clienttest.New()
	srv := svc.Start(t)
	c := client.New(client.Config{BaseURL: srv.URL})
	game := svc.PutGame(content.GameDef{
		Name:       "Westworld",
		Agents:     []content.AgentDef{{Name: "Dolores"}, {Name: "Teddy"}},
		SharedLore: sample,
	})

	ed := lore.NewEditor(game.SharedLore, lore.GameSaver{Client: c, GameUUID: game.UUID})
	require.NoError(t, ed.SetKnownBy(context.Background(), 3, []string{game.Agents[1].UUID}))

	stored, ok := svc.Game(game.UUID)
	require.True(t, ok)
	assert.Len(t, stored.Agents, 2, "agents survive the lore save")
	require.Len(t, stored.SharedLore, 4)
	assert.Equal(t, []string{game.Agents[1].UUID}, stored.SharedLore[3].KnownBy)
	assert.Equal(t, 1, svc.Syncs(game.UUID))

	var sawOverwriteFalse bool
	for _, r := range svc.Requests() {
		if r.Method == "PUT" && r.RawQuery == "overwrite_agents=false" {
			sawOverwriteFalse = true
			assert.NotContains(t, string(r.Body), `"agents"`)
		}
	}
	assert.True(t, sawOverwriteFalse)
}
