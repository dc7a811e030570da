package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/tricolour/indiamap/internal/scene"
)

const (
	sendChSize = 256
	writeWait  = 10 * time.Second
)

// Hub pushes frame changes to websocket subscribers. Publish never blocks:
// a subscriber whose queue is full misses the message.
type Hub struct {
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	dropped atomic.Int64
}

// client is one subscriber with a single write goroutine.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewHub creates a hub accepting upgrades from allowedOrigins. Browsers do
// not apply CORS to websocket handshakes, so the Origin header is checked
// here. An empty list or "*" allows any origin; entries may hold one "*"
// wildcard, as in "https://*.example.in". Requests without an Origin header
// come from non-browser clients and are accepted.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	origins := append([]string(nil), allowedOrigins...)
	h := &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || originAllowed(origins, origin) {
				return true
			}
			h.logger.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
			return false
		},
	}
	return h
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin = strings.ToLower(origin)
	for _, a := range allowed {
		a = strings.ToLower(a)
		if a == "*" || a == origin {
			return true
		}
		prefix, suffix, ok := strings.Cut(a, "*")
		if ok && len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// Publish queues c for every subscriber. It runs on the animation tick.
func (h *Hub) Publish(c scene.FrameChange) {
	data, err := json.Marshal(c)
	if err != nil {
		h.logger.Error("failed to marshal frame change", "marker", c.MarkerID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.sendCh <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams frame changes until the peer
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	cl := &client{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cl.close()
		return
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", "remote", r.RemoteAddr)

	go h.writeLoop(cl)
	h.readLoop(cl)

	h.remove(cl)
	h.logger.Debug("subscriber disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	cl.close()
}

// writeLoop drains sendCh to the connection. It returns on the first write
// error or when the client is closed.
func (h *Hub) writeLoop(cl *client) {
	for {
		select {
		case <-cl.done:
			return
		case data := <-cl.sendCh:
			if err := cl.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				cl.close()
				return
			}
			if err := cl.conn.WriteMessage(ws.TextMessage, data); err != nil {
				h.logger.Debug("websocket write error", "error", err)
				cl.close()
				return
			}
		}
	}
}

// readLoop discards inbound messages; it only notices the peer leaving.
func (h *Hub) readLoop(cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		msg := ws.FormatCloseMessage(ws.CloseGoingAway, "shutting down")
		_ = cl.conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(time.Second))
		cl.close()
	}
}
