package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"smart-mirror/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// ConfirmHandler receives a display's answer to a pending confirmation.
type ConfirmHandler func(ctx context.Context, confirm bool)

type Gauge interface {
	Set(float64)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub is the websocket event bus shared with the display.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	gauge    Gauge

	mu        sync.RWMutex
	clients   map[string]*client
	onConfirm ConfirmHandler
}

func NewHub(gauge Gauge, logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The display is served from a different origin on the LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  logger,
		gauge:   gauge,
		clients: make(map[string]*client),
	}
}

func (h *Hub) OnConfirm(handler ConfirmHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConfirm = handler
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends the event to every connected client. A client whose buffer
// is full misses the event.
func (h *Hub) Publish(_ context.Context, event domain.Event, data any) error {
	msg, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping event for slow client", "client", c.id, "event", event)
		}
	}
	return nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.setGauge(n)
	h.logger.Info("display connected", "client", c.id, "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.setGauge(n)
	h.logger.Info("display disconnected", "client", c.id, "clients", n)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read", "client", c.id, "error", err)
			}
			return
		}
		h.handleInbound(c, msg)
	}
}

type inbound struct {
	Event domain.Event    `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *Hub) handleInbound(c *client, msg []byte) {
	var in inbound
	if err := json.Unmarshal(msg, &in); err != nil {
		h.logger.Warn("invalid websocket message", "client", c.id, "error", err)
		return
	}

	ctx := context.Background()
	switch in.Event {
	case domain.EventWakeWord, domain.EventVoiceText:
		h.logger.Info("peripheral event", "client", c.id, "event", in.Event)
		var data any
		if len(in.Data) > 0 {
			json.Unmarshal(in.Data, &data)
		}
		h.Publish(ctx, in.Event, data)

	case domain.EventConfirmResponse:
		var body struct {
			Confirm bool `json:"confirm"`
		}
		if err := json.Unmarshal(in.Data, &body); err != nil {
			h.logger.Warn("invalid confirm_response", "client", c.id, "error", err)
			return
		}
		h.mu.RLock()
		handler := h.onConfirm
		h.mu.RUnlock()
		if handler != nil {
			handler(ctx, body.Confirm)
		}

	default:
		h.logger.Debug("ignoring websocket event", "client", c.id, "event", in.Event)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	return nil
}
