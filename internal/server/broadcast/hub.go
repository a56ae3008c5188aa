package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbakke/listsync/internal/logging"
)

const (
	writeWait = 10 * time.Second

	// sendQueueSize bounds the per-client outbox. A client that cannot
	// drain this many events is disconnected rather than allowed to slow
	// down publishing.
	sendQueueSize = 16
)

// Hub is the websocket implementation of Broadcaster. Each subscribed
// connection gets a buffered outbox; Publish copies the event into every
// outbox without blocking and drops connections whose outbox is full.
type Hub struct {
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger: logger.With("module", "broadcast_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*hubClient]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket connection and subscribes
// it to all published events until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "err", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, sendQueueSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info(r.Context(), "subscriber connected", "subscribers", n)

	go h.writePump(c)
	go h.readPump(c)
}

// Publish sends the event to every connected subscriber. It never blocks and
// never reports failure to the caller; the mutation the event describes has
// already committed.
func (h *Hub) Publish(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(ctx, "event marshal failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// outbox full: disconnect the slow subscriber
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn(ctx, "dropping slow subscriber")
		}
	}
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) writePump(c *hubClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards inbound frames; the channel is push-only. Its job is to
// notice the peer going away and unsubscribe it.
func (h *Hub) readPump(c *hubClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}
