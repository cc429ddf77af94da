package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/robot-expedition/internal/engine"
)

// FeedInterval is the redraw cadence of the websocket snapshot feed.
const FeedInterval = 30 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
}

// FeedFrame is one message on the snapshot feed.
type FeedFrame struct {
	Snapshot engine.Snapshot `json:"snapshot"`
	Stats    engine.Stats    `json:"stats"`
	Stale    bool            `json:"stale"` // Map lock was busy; snapshot is the previous one
}

// handleSnapshotFeed streams grid snapshots to a renderer. When the map lock
// is busy the previous snapshot is reused instead of waiting.
func (s *Server) handleSnapshotFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader loop: handles control frames and notices the client leaving.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := s.Sim.Snapshot()
	ticker := time.NewTicker(FeedInterval)
	defer ticker.Stop()

	for {
		frame := FeedFrame{Snapshot: last, Stats: s.Sim.Stats()}
		if snap, ok := s.Sim.TrySnapshot(); ok {
			last = snap
			frame.Snapshot = snap
		} else {
			frame.Stale = true
		}

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			slog.Debug("snapshot feed closed", "error", err)
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
