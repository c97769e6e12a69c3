// Package stream pushes live air-quality updates to websocket clients: the
// regional risk summary on every tick and alert events as they happen.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

const (
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBufSize = 16

	EventRiskSummary = "risk_summary"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event  string      `json:"event"`
	SentAt time.Time   `json:"sent_at"`
	Data   interface{} `json:"data"`
}

// RiskSource supplies the summary broadcast on every tick.
type RiskSource interface {
	RiskSummary(ctx context.Context, region string) (models.RiskSummaryResponse, error)
}

// Hub manages websocket clients. It implements alerts.Notifier.
type Hub struct {
	source   RiskSource
	region   string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub that broadcasts region's risk summary every interval.
func NewHub(source RiskSource, region string, interval time.Duration, logger *zap.Logger) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		source:   source,
		region:   region,
		interval: interval,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Run broadcasts the risk summary every interval until ctx is cancelled, then
// closes all connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if data, err := h.summaryMessage(ctx); err == nil {
				h.broadcast(EventRiskSummary, data)
			} else {
				h.logger.Warn("stream summary failed", zap.Error(err))
			}
		}
	}
}

// ServeHTTP upgrades the connection and serves the client until it disconnects.
// The current summary is sent immediately on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	defer h.unregister(c)

	if data, err := h.summaryMessage(r.Context()); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump()
}

// Name implements alerts.Notifier.
func (h *Hub) Name() string { return "stream" }

// Notify implements alerts.Notifier by broadcasting the event to every client.
func (h *Hub) Notify(ctx context.Context, ev alerts.Event) error {
	data, err := encode(ev.Type, ev)
	if err != nil {
		return err
	}
	h.broadcast(ev.Type, data)
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	observability.StreamClients.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		observability.StreamClients.Set(float64(len(h.clients)))
	}
}

// broadcast queues data for every client. Clients whose buffer is full are disconnected.
func (h *Hub) broadcast(event string, data []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	n := len(h.clients) - len(slow)
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Debug("dropping slow stream client")
		h.unregister(c)
	}
	if n > 0 {
		observability.StreamMessagesTotal.WithLabelValues(event).Add(float64(n))
	}
}

func (h *Hub) summaryMessage(ctx context.Context) ([]byte, error) {
	summary, err := h.source.RiskSummary(ctx, h.region)
	if err != nil {
		return nil, err
	}
	return encode(EventRiskSummary, summary)
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Event: event, SentAt: time.Now().UTC(), Data: data})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	observability.StreamClients.Set(0)
}

// writePump forwards queued messages and sends periodic pings. One goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control frames and detects disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
