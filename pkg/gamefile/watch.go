package gamefile

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for more writes to a file before
// importing it.
const DefaultDebounce = 300 * time.Millisecond

// Watcher imports game files from a directory whenever they change.
type Watcher struct {
	Games    Games
	Sessions Syncer
	Dir      string
	Debounce time.Duration
	Logger   *slog.Logger
	// OnImport is called after each import attempt.
	OnImport func(Result)
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(w.Dir); err != nil {
		return err
	}
	logger.Info("Watching game files", "dir", w.Dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !isGameFile(event.Name) || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			logger.Debug("Game file changed", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < debounce {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				def, err := Import(ctx, w.Games, w.Sessions, path)
				if err != nil {
					logger.Warn("Failed to import game file", "path", path, "error", err)
				}
				if w.OnImport != nil {
					w.OnImport(Result{Path: path, Game: def, Err: err})
				}
			}
		}
	}
}
