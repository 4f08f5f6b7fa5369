package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nstogner/eastworld-studio/pkg/transcript"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dev server only
	},
}

// handleWatchTranscript streams a transcript's entries, first the recorded
// ones and then each new turn as it is appended. Turns recorded by another
// process are picked up through file notifications.
func (s *Server) handleWatchTranscript(c *gin.Context) {
	id := c.Param("id")
	store := s.cfg.Transcripts
	if _, _, err := store.Load(id); errors.Is(err, transcript.ErrNotFound) {
		errorResponse(c, http.StatusNotFound, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		ws.WriteJSON(gin.H{"error": err.Error()})
		return
	}
	defer fsw.Close()
	if err := fsw.Add(store.Path(id)); err != nil {
		slog.Warn("Failed to watch transcript file", "id", id, "error", err)
	}
	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	sent := make(map[string]bool)
	if err := syncTranscript(ws, store, id, sent); err != nil {
		slog.Error("Failed initial sync", "error", err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Client messages are ignored; reading detects the close.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("WebSocket read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case changed := <-updates:
			if changed != id {
				continue
			}
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) {
				continue
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Transcript watch error", "id", id, "error", err)
			continue
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
			continue
		}
		if err := syncTranscript(ws, store, id, sent); err != nil {
			slog.Error("Failed (re)sync", "error", err)
			return
		}
	}
}

// syncTranscript sends every entry not yet in sent.
func syncTranscript(ws *websocket.Conn, store *transcript.Store, id string, sent map[string]bool) error {
	_, entries, err := store.Load(id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if sent[e.ID] {
			continue
		}
		if err := ws.WriteJSON(e); err != nil {
			return err
		}
		sent[e.ID] = true
	}
	return nil
}
