package gamefile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/client/clienttest"
	"github.com/nstogner/eastworld-studio/pkg/content"
	"github.com/nstogner/eastworld-studio/pkg/gamefile"
)

func setup(t *testing.T) (*clienttest.Service, *client.Client) {
	t.Helper()
	svc := clienttest.New()
	srv := svc.Start(t)
	return svc, client.New(client.Config{BaseURL: srv.URL})
}

func writeGame(t *testing.T, path string, def content.GameDef) {
	t.Helper()
	data, err := json.Marshal(def)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, c := setup(t)
	ctx := context.Background()
	game := svc.PutGame(content.GameDef{
		Name:        "Westworld",
		Description: "Park",
		Agents:      []content.AgentDef{{Name: "Dolores"}},
	})

	dir := t.TempDir()
	path, err := gamefile.Export(ctx, c.Games, game.UUID, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, game.UUID+".json"), path)

	def, _, err := gamefile.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "Westworld", def.Name)
	require.Len(t, def.Agents, 1)

	def.Description = "Sweetwater"
	writeGame(t, path, def)

	imported, err := gamefile.Import(ctx, c.Games, c.Sessions, path)
	require.NoError(t, err)
	assert.Equal(t, game.UUID, imported.UUID)

	stored, ok := svc.Game(game.UUID)
	require.True(t, ok)
	assert.Equal(t, "Sweetwater", stored.Description)
	assert.Equal(t, 1, svc.Syncs(game.UUID))
}

func TestReadRequiresUUID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	writeGame(t, path, content.GameDef{Name: "x"})
	_, _, err := gamefile.Read(path)
	assert.ErrorIs(t, err, gamefile.ErrNoUUID)
}

func TestImportGlob(t *testing.T) {
	svc, c := setup(t)
	dir := t.TempDir()
	writeGame(t, filepath.Join(dir, "b.json"), content.GameDef{UUID: "g2", Name: "B", Description: "b"})
	writeGame(t, filepath.Join(dir, "nested", "deep", "a.json"), content.GameDef{UUID: "g1", Name: "A", Description: "a"})
	writeGame(t, filepath.Join(dir, "broken.json"), content.GameDef{Name: "no uuid"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644))

	results, err := gamefile.ImportGlob(context.Background(), c.Games, nil, filepath.Join(dir, "**", "*.json"))
	require.NoError(t, err)
	require.Len(t, results, 3)

	var paths []string
	failed := 0
	for _, r := range results {
		paths = append(paths, filepath.Base(r.Path))
		if r.Err != nil {
			failed++
		}
	}
	assert.Equal(t, []string{"b.json", "broken.json", "a.json"}, paths)
	assert.Equal(t, 1, failed)

	_, ok := svc.Game("g1")
	assert.True(t, ok)
	_, ok = svc.Game("g2")
	assert.True(t, ok)
	assert.Equal(t, 0, svc.Syncs("g1"))
}

func TestWatcherImportsChangedFiles(t *testing.T) {
	svc, c := setup(t)
	dir := t.TempDir()

	imported := make(chan gamefile.Result, 4)
	w := &gamefile.Watcher{
		Games:    c.Games,
		Sessions: c.Sessions,
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		OnImport: func(r gamefile.Result) { imported <- r },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	writeGame(t, filepath.Join(dir, "ww.json"), content.GameDef{UUID: "g9", Name: "Westworld", Description: "Park"})

	select {
	case r := <-imported:
		require.NoError(t, r.Err)
		assert.Equal(t, "g9", r.Game.UUID)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for import")
	}
	stored, ok := svc.Game("g9")
	require.True(t, ok)
	assert.Equal(t, "Westworld", stored.Name)
	assert.Equal(t, 1, svc.Syncs("g9"))
}
