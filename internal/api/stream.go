package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/living-world/internal/events"
)

const (
	streamBuffer = 256
	pingInterval = 30 * time.Second
	writeWait    = 5 * time.Second
)

// hub fans dispatched events out to stream clients. publish runs inside a
// step, so it never blocks: a client whose buffer is full misses events.
type hub struct {
	mu      sync.Mutex
	clients map[uint64]chan events.Event
	next    uint64
	closed  bool
	dropped atomic.Uint64
}

func newHub() *hub {
	return &hub{clients: make(map[uint64]chan events.Event)}
}

func (h *hub) publish(e events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// join registers a client. ok is false once the hub is closed.
func (h *hub) join() (id uint64, ch <-chan events.Event, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, false
	}
	h.next++
	c := make(chan events.Event, streamBuffer)
	h.clients[h.next] = c
	return h.next, c, true
}

func (h *hub) leave(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c)
	}
}

// handleStream upgrades to a WebSocket and sends every dispatched event as a
// JSON text message, starting with the snapshot's recent events. ?kind=
// restricts the stream to one kind.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub.size() >= maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	kind := events.Kind(r.URL.Query().Get("kind"))

	// Join before the upgrade completes so no event published after the
	// handshake is missed.
	id, ch, ok := s.hub.join()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.leave(id)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.Logger.Info("stream client connected", "client", id, "kind", kind)

	// The reader only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(e events.Event) bool {
		if kind != "" && e.Kind != kind {
			return true
		}
		data, err := json.Marshal(e)
		if err != nil {
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	var last uint64
	for _, e := range s.Sim.Latest().Recent {
		if !send(e) {
			return
		}
		last = e.Seq
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
				return
			}
			if e.Seq <= last {
				continue
			}
			if !send(e) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			s.Logger.Info("stream client disconnected", "client", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}
