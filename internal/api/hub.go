package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/observability"
)

// Event types pushed to dashboard clients.
const (
	EventAnalysis = "analysis"
	EventCoverage = "coverage"
	EventHistory  = "history"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Event is one message of the live feed.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans events out to every connected websocket client.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader websocket.Upgrader
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
	clock    func() time.Time
}

// NewHub creates a hub. Start it with Run.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client, 8),
		unregister: make(chan *client, 8),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logrus.StandardLogger(),
		clock:  time.Now,
	}
}

// WithMetrics sets the metrics sink for the client gauge.
func (h *Hub) WithMetrics(m *observability.Metrics) *Hub {
	h.metrics = m
	return h
}

// WithLogger sets the logger.
func (h *Hub) WithLogger(l logrus.FieldLogger) *Hub {
	if l != nil {
		h.logger = l
	}
	return h
}

// WithCheckOrigin sets the origin policy of the upgrader. Nil keeps gorilla's same-origin check.
func (h *Hub) WithCheckOrigin(fn func(r *http.Request) bool) *Hub {
	h.upgrader.CheckOrigin = fn
	return h
}

// Run serves register, unregister and broadcast until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log := h.logger.WithField("module", "ws")
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.metrics.SetWebsocketClients(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWebsocketClients(n)
			log.WithField("clients", n).Debug("client connected")

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				log.Warn("client send buffer full, disconnecting")
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebsocketClients(n)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for every client. It never blocks; events are
// dropped when the broadcast queue is full.
func (h *Hub) Publish(eventType, sessionID string, data interface{}) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: h.clock().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		h.logger.WithError(err).WithField("module", "ws").Error("marshal event")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithField("module", "ws").Warn("broadcast queue full, event dropped")
	}
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("module", "ws").Warn("upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), hub: h}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump drains control frames; client messages are ignored.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
