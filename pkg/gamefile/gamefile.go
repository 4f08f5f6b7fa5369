// Package gamefile moves game definitions between JSON files on disk and the
// Content Service.
package gamefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nstogner/eastworld-studio/pkg/content"
)

// Games is the part of client.GameService used here.
type Games interface {
	GetJSON(ctx context.Context, uuid string) (json.RawMessage, error)
	PutJSON(ctx context.Context, jsonedGame string) error
}

// Syncer pushes stored definitions into a game's live sessions.
type Syncer interface {
	Sync(ctx context.Context, gameUUID string) error
}

var ErrNoUUID = errors.New("game file has no uuid")

// Export writes a game to path. When path is a directory the file is named
// after the game uuid.
func Export(ctx context.Context, games Games, uuid, path string) (string, error) {
	raw, err := games.GetJSON(ctx, uuid)
	if err != nil {
		return "", fmt.Errorf("get game %s: %w", uuid, err)
	}
	// The endpoint may return the game either as an object or as a string
	// holding the encoded object.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", fmt.Errorf("game %s is not JSON: %w", uuid, err)
	}
	out.WriteByte('\n')

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, uuid+".json")
	}
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		return "", err
	}
	slog.Debug("Game exported", "game", uuid, "path", path)
	return path, nil
}

// Read decodes a game file. The game must carry its uuid.
func Read(path string) (content.GameDef, []byte, error) {
	var def content.GameDef
	data, err := os.ReadFile(path)
	if err != nil {
		return def, nil, err
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return def, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if def.UUID == "" {
		return def, nil, fmt.Errorf("%s: %w", path, ErrNoUUID)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return def, nil, err
	}
	return def, compact.Bytes(), nil
}

// Import stores the game in path, replacing any game with the same uuid.
// sessions may be nil; otherwise live sessions of the game are synced.
func Import(ctx context.Context, games Games, sessions Syncer, path string) (content.GameDef, error) {
	def, data, err := Read(path)
	if err != nil {
		return def, err
	}
	if err := games.PutJSON(ctx, string(data)); err != nil {
		return def, fmt.Errorf("put game %s: %w", path, err)
	}
	if sessions != nil {
		if err := sessions.Sync(ctx, def.UUID); err != nil {
			return def, fmt.Errorf("sync sessions: %w", err)
		}
	}
	slog.Info("Game imported", "game", def.UUID, "name", def.Name, "path", path)
	return def, nil
}

// Result is the outcome of importing one file.
type Result struct {
	Path string
	Game content.GameDef
	Err  error
}

// ImportGlob imports every file matching pattern, which may use "**". Files
// are imported in path order and a failure does not stop the rest.
func ImportGlob(ctx context.Context, games Games, sessions Syncer, pattern string) ([]Result, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	sort.Strings(matches)

	var results []Result
	for _, path := range matches {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		def, err := Import(ctx, games, sessions, path)
		if err != nil {
			slog.Warn("Failed to import game file", "path", path, "error", err)
		}
		results = append(results, Result{Path: path, Game: def, Err: err})
	}
	return results, nil
}

func isGameFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
