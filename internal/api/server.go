// Package api provides the HTTP API over a running simulation.
// GET endpoints are public and read the latest snapshot.
// Mutating endpoints require a bearer token and run between steps.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/living-world/internal/agents"
	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/engine"
	"github.com/talgya/living-world/internal/events"
	"github.com/talgya/living-world/internal/persistence"
	"github.com/talgya/living-world/internal/world"
)

const maxStreamConns = 8

// Server serves a simulation over HTTP.
type Server struct {
	Sim      *engine.Simulator
	DB       *persistence.Store // optional; enables snapshots and history
	Addr     string
	AdminKey string // Bearer token for admin endpoints. Empty = disabled.
	Logger   *slog.Logger

	// WriteLimit caps admin requests per client per minute. Zero disables.
	WriteLimit int

	once     sync.Once
	handler  http.Handler
	hub      *hub
	unsub    func()
	upgrader websocket.Upgrader
}

// Handler returns the API's handler. The first call subscribes the event
// stream to the simulator's world.
func (s *Server) Handler() http.Handler {
	s.once.Do(s.build)
	return s.handler
}

func (s *Server) build() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.hub = newHub()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	_ = s.Sim.Do(func(w *engine.World) error {
		s.unsub = w.Subscribe(events.KindAny, s.hub.publish)
		return nil
	})

	admin := func(h http.HandlerFunc) http.HandlerFunc { return s.adminOnly(h) }
	if s.WriteLimit > 0 {
		rl := NewRateLimiter(s.WriteLimit, time.Minute)
		admin = func(h http.HandlerFunc) http.HandlerFunc { return s.adminOnly(RateLimitMiddleware(rl, h)) }
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/clock", s.handleClock)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agents/{id}", s.handleAgent)
	mux.HandleFunc("GET /api/v1/places", s.handlePlaces)
	mux.HandleFunc("GET /api/v1/places/{id}", s.handlePlace)
	mux.HandleFunc("GET /api/v1/places/{id}/agents", s.handlePlaceAgents)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints (require bearer token).
	mux.HandleFunc("POST /api/v1/speed", admin(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/snapshot", admin(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/agents", admin(s.handleSpawnAgent))
	mux.HandleFunc("POST /api/v1/agents/{id}/force", admin(s.handleForce))
	mux.HandleFunc("DELETE /api/v1/agents/{id}", admin(s.handleRemoveAgent))
	mux.HandleFunc("POST /api/v1/places", admin(s.handleSpawnPlace))
	mux.HandleFunc("DELETE /api/v1/places/{id}", admin(s.handleRemovePlace))
	mux.HandleFunc("POST /api/v1/connections", admin(s.handleConnect))

	s.handler = mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.close()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close detaches the event stream from the world.
func (s *Server) Close() {
	if s.unsub == nil {
		return
	}
	_ = s.Sim.Do(func(*engine.World) error {
		s.unsub()
		return nil
	})
	s.unsub = nil
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Latest()
	writeJSON(w, map[string]any{
		"name":                snap.Name,
		"clock":               snap.Clock,
		"agents":              len(snap.Agents),
		"places":              len(snap.Places),
		"speed":               s.Sim.Speed(),
		"step_minutes":        s.Sim.StepSize(),
		"subscriber_failures": snap.Failures,
		"stream_clients":      s.hub.size(),
	})
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Latest().Clock)
}

// handleAgents lists agents, optionally filtered by ?activity=.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Latest()
	filter := r.URL.Query().Get("activity")
	if filter == "" {
		writeJSON(w, snap.Agents)
		return
	}
	act, err := agents.ParseActivity(filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := []engine.AgentView{}
	for _, a := range snap.Agents {
		if a.Activity == act {
			out = append(out, a)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, found := s.Sim.Latest().Agent(world.AgentID(id))
	if !found {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Latest().Places)
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, found := s.Sim.Latest().Place(world.PlaceID(id))
	if !found {
		http.Error(w, "place not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handlePlaceAgents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snap := s.Sim.Latest()
	if _, found := snap.Place(world.PlaceID(id)); !found {
		http.Error(w, "place not found", http.StatusNotFound)
		return
	}
	writeJSON(w, snap.AgentsAt(world.PlaceID(id)))
}

// handleEvents returns the snapshot's recent events, optionally filtered by
// ?kind= and bounded by ?limit=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, engine.SnapshotEvents)
	if !ok {
		return
	}
	kind := events.Kind(r.URL.Query().Get("kind"))
	out := []events.Event{}
	recent := s.Sim.Latest().Recent
	for i := len(recent) - 1; i >= 0 && len(out) < limit; i-- {
		if kind == "" || recent[i].Kind == kind {
			out = append(out, recent[i])
		}
	}
	// Oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	writeJSON(w, out)
}

// handleHistory reads archived events from the database.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit, ok := queryLimit(w, r, 100)
	if !ok {
		return
	}
	evs, err := s.DB.RecentEvents(s.Sim.Latest().Name, events.Kind(r.URL.Query().Get("kind")), min(limit, 1000))
	if err != nil {
		s.Logger.Error("history query failed", "error", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, evs)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed       *float64 `json:"speed"`
		StepMinutes *uint64  `json:"step_minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Speed != nil {
		if *req.Speed < 0 || *req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Sim.SetSpeed(*req.Speed)
	}
	if req.StepMinutes != nil {
		if *req.StepMinutes == 0 {
			http.Error(w, "step_minutes must be positive", http.StatusBadRequest)
			return
		}
		s.Sim.SetStepSize(*req.StepMinutes)
	}
	s.Logger.Info("speed changed", "speed", s.Sim.Speed(), "step_minutes", s.Sim.StepSize())
	writeJSON(w, map[string]any{"speed": s.Sim.Speed(), "step_minutes": s.Sim.StepSize()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	var id int64
	err := s.Sim.Do(func(wd *engine.World) error {
		var err error
		id, err = s.DB.SaveSnapshot(wd)
		return err
	})
	if err != nil {
		s.Logger.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"snapshot": id,
		"clock":    s.Sim.Latest().Clock.Total,
		"message":  "snapshot saved",
	})
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Professions []string      `json:"professions"`
		Place       world.PlaceID `json:"place"`
	}
	if !decode(w, r, &req) {
		return
	}
	var id world.AgentID
	err := s.Sim.Do(func(wd *engine.World) error {
		var err error
		id, err = wd.SpawnAgent(req.Professions, req.Place)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var f engine.Force
	if !decode(w, r, &f) {
		return
	}
	if err := s.Sim.Do(func(wd *engine.World) error { return wd.ForceAgent(world.AgentID(id), f) }); err != nil {
		writeError(w, err)
		return
	}
	a, _ := s.Sim.Latest().Agent(world.AgentID(id))
	writeJSON(w, a)
}

func (s *Server) handleRemoveAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Sim.Do(func(wd *engine.World) error { return wd.RemoveAgent(world.AgentID(id)) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpawnPlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"template"`
		Biome    string `json:"biome"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Template == "" {
		http.Error(w, "template required", http.StatusBadRequest)
		return
	}
	var id world.PlaceID
	err := s.Sim.Do(func(wd *engine.World) error {
		var err error
		id, err = wd.SpawnPlace(req.Template, req.Biome)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRemovePlace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Sim.Do(func(wd *engine.World) error { return wd.RemovePlace(world.PlaceID(id)) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A        world.PlaceID `json:"a"`
		B        world.PlaceID `json:"b"`
		Distance uint64        `json:"distance"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.Sim.Do(func(wd *engine.World) error { return wd.Connect(req.A, req.B, req.Distance) }); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps engine errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownAgent), errors.Is(err, engine.ErrUnknownPlace):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, content.ErrNoResult), errors.Is(err, content.ErrFactoryFailed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeStatus(w, http.StatusOK, data)
}

func writeStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
