package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Aldentec/ATSMap-sub000/internal/scoring"
)

const (
	clientSendBuffer = 32
	writeWait        = 10 * time.Second
	snapshotInterval = time.Second
)

// event is the envelope pushed to websocket clients.
type event struct {
	Type    string      `json:"type"` // notification, snapshot
	Payload interface{} `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts scoring notifications and periodic snapshots to connected
// websocket clients.
type Hub struct {
	engine   *scoring.Engine
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub for the given engine.
func NewHub(engine *scoring.Engine, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		engine: engine,
		log:    logger.With(slog.String("component", "ws_hub")),
		upgrader: websocket.Upgrader{
			// Local single-user tool; the browser dashboard runs on another port.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("err", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// readPump discards inbound messages; it exists to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Broadcast sends a message to every connected client, dropping clients that
// cannot keep up.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.remove(c)
	}
}

// Run drains the engine's notification stream and pushes periodic snapshots
// until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-h.engine.Notifications():
			h.broadcastEvent("notification", n)
		case <-ticker.C:
			h.broadcastEvent("snapshot", h.engine.GetCurrentSnapshot())
		}
	}
}

func (h *Hub) broadcastEvent(kind string, payload interface{}) {
	msg, err := json.Marshal(event{Type: kind, Payload: payload})
	if err != nil {
		h.log.Error("event marshal failed", slog.String("err", err.Error()))
		return
	}
	h.Broadcast(msg)
}
