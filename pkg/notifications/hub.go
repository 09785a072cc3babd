package notifications

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Event is the envelope pushed to websocket subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans notifications out to every open websocket of a user.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*client]struct{}
	upgrader websocket.Upgrader
	origins  map[string]struct{}
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewHub creates a hub accepting upgrades from allowedOrigins ("*" allows any).
func NewHub(allowedOrigins []string, m *metrics.Metrics, log logger.Logger) *Hub {
	h := &Hub{
		clients: make(map[uint]map[*client]struct{}),
		origins: make(map[string]struct{}, len(allowedOrigins)),
		metrics: m,
		log:     logger.OrNop(log),
	}
	for _, o := range allowedOrigins {
		h.origins[o] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins["*"]; ok {
		return true
	}
	_, ok := h.origins[origin]
	return ok
}

// Connections returns the number of open sockets for userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish queues v for every socket of userID and returns how many received it.
// Sockets whose buffer is full are dropped.
func (h *Hub) Publish(userID uint, v Event) int {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to encode websocket event", "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.removeLocked(c)
		}
	}
	return delivered
}

// Serve upgrades the request and streams events for userID until the peer
// goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()
	h.metrics.WebsocketOpened()
	h.log.Debug("notification stream opened", "user_id", userID)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	h.metrics.WebsocketClosed()
}

// readPump discards client frames; it only exists to process control frames
// and notice disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
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

func (h *Hub) writePump(c *client) {
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

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
