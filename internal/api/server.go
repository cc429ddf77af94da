// Package api provides the HTTP control surface for the simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/robot-expedition/internal/engine"
	"github.com/talgya/robot-expedition/internal/persistence"
	"github.com/talgya/robot-expedition/internal/world"
)

const maxSSEConns = 4

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	DB       *persistence.DB // Optional run journal
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = open.

	// Dispatch requests allowed per client per minute (0 = unlimited).
	DispatchPerMinute int

	// Active SSE connection count (atomic).
	sseConns int32

	httpSrv *http.Server
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	dispatch := http.HandlerFunc(s.handleDispatch)
	if s.DispatchPerMinute > 0 {
		dispatch = RateLimitMiddleware(NewRateLimiter(s.DispatchPerMinute, time.Minute), s.handleDispatch)
	}
	mux.HandleFunc("/api/v1/robots", s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			dispatch(w, r)
			return
		}
		writeJSON(w, s.Sim.Robots())
	}))
	mux.HandleFunc("/api/v1/resources", s.handleResources)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/reports", s.handleReports)
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/ws", s.handleSnapshotFeed)

	mux.HandleFunc("/api/v1/play", s.adminOnly(postOnly(s.handlePlay)))
	mux.HandleFunc("/api/v1/pause", s.adminOnly(postOnly(s.handlePause)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":  "robot-expedition",
		"stats": s.Sim.Stats(),
		"base":  s.Sim.BasePosition(),
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	kind, ok := world.ParseRobotKind(req.Kind)
	if !ok {
		http.Error(w, "kind must be explorer or harvester", http.StatusBadRequest)
		return
	}
	id, err := s.Sim.SendRobot(kind, nil)
	if err != nil {
		slog.Warn("dispatch rejected", "kind", req.Kind, "error", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]string{"id": id, "kind": kind.String()})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.Sim.Play()
	writeJSON(w, map[string]bool{"running": s.Sim.Running()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.Sim.Pause()
	writeJSON(w, map[string]bool{"running": s.Sim.Running()})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Faster bool `json:"faster"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Faster {
			s.Sim.IncreaseSpeed()
		} else {
			s.Sim.DecreaseSpeed()
		}
	}
	writeJSON(w, map[string]int64{"interval_ms": s.Sim.Interval().Milliseconds()})
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("pending") == "true" {
		writeJSON(w, s.Sim.Pending())
		return
	}
	writeJSON(w, s.Sim.Located())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.RecentEvents(limitParam(r, 50)))
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	reports, err := s.DB.Reports(limitParam(r, 50))
	if err != nil {
		slog.Error("reports query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	totals, err := s.DB.Totals()
	if err != nil {
		slog.Error("totals query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"reports": reports,
		"totals":  totals,
	})
}

// handleStream pushes live events as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	for _, e := range s.Sim.RecentEvents(20) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
}

func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > 1000 {
		return 1000
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
