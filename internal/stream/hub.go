package stream

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096

	defaultSendQueue = 16
)

// WithHubLogger sets the logger for the hub
func WithHubLogger(logger *slog.Logger) func(h *Hub) {
	return func(h *Hub) {
		h.logger = logger.With(slog.String("component", "hub"))
	}
}

// Hub fans binary frames out to websocket clients. A client that cannot keep
// up loses frames instead of slowing everyone else down.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	sent    atomic.Uint64
	dropped atomic.Uint64
	logger  *slog.Logger
}

func NewHub(options ...func(h *Hub)) *Hub {
	h := Hub{
		clients: make(map[*client]struct{}),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&h)
	}

	return &h
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// writePump pumps messages from the hub to the websocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands text messages to onMessage until the connection fails.
func (c *client) readPump(onMessage func([]byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.TextMessage && onMessage != nil {
			onMessage(msg)
		}
	}
}

// Serve registers conn and blocks until the client goes away.
func (h *Hub) Serve(conn *websocket.Conn, onMessage func([]byte)) {
	c := &client{conn: conn, send: make(chan []byte, defaultSendQueue)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("clients", count))

	go c.writePump()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()

		h.logger.Info("client disconnected", slog.String("remote", conn.RemoteAddr().String()))
	}()

	c.readPump(onMessage)
}

// Broadcast queues msg for every client without blocking.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
			h.sent.Add(1)
		default:
			if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
				h.logger.Warn("client is falling behind, dropping frames", slog.Uint64("dropped", n))
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
