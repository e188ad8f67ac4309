package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/freeeve/chaturaji/internal/selfplay"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 16
)

// wsMessage is the envelope of every frame sent to feed clients.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans finished-game summaries out to websocket clients. Slow clients
// miss messages instead of stalling the feed.
type Hub struct {
	log       zerolog.Logger
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	stopped   bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:       log.With().Str("component", "ws").Logger(),
		clients:   make(map[*wsClient]struct{}),
		broadcast: make(chan []byte, 64),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Run delivers published messages until ctx ends, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues a game summary for every client. It never blocks.
func (h *Hub) Publish(s selfplay.GameSummary) {
	payload, err := json.Marshal(s)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal game summary")
		return
	}
	msg, _ := json.Marshal(wsMessage{Type: "game", Payload: payload})
	select {
	case h.broadcast <- msg:
	default:
		h.log.Debug().Int64("game", s.ID).Msg("feed backlog full, summary dropped")
	}
}

// register adds c unless the hub has stopped.
func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// Stopped reports whether Run has returned.
func (h *Hub) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams messages until the client goes
// away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.Stopped() {
		http.Error(w, "game feed stopped", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "game feed stopped"),
			time.Now().Add(wsWriteTimeout))
		conn.Close()
		return
	}
	h.log.Debug().Str("remote", r.RemoteAddr).Int("clients", h.Clients()).Msg("feed client connected")

	go func() {
		defer conn.Close()
		if err := writeWithHeartbeat(conn, c.send); err != nil {
			h.log.Debug().Err(err).Msg("feed write ended")
		}
	}()

	// Clients only listen; reading drives close detection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

// writeWithHeartbeat writes queued messages and pings idle connections
// every wsPingInterval.
func writeWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteTimeout))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsPingInterval {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
