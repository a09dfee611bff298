package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/logging"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/mqtt"
)

const (
	// StreamTypeState marks a relayed item state.
	StreamTypeState = "state"

	streamSendBuffer   = 64
	streamPingInterval = 30 * time.Second
	streamPongWait     = 10 * time.Second
	streamMaxMessage   = 512
)

// StreamMessage is one frame on the state stream.
type StreamMessage struct {
	Type      string          `json:"type"`
	Item      string          `json:"item"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hub fans item state out to connected stream clients.
type Hub struct {
	logger  *logging.Logger
	clients map[*streamClient]struct{}
	mu      sync.RWMutex
}

// streamClient is one connected stream consumer. A nil items set means
// every item.
type streamClient struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	items map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The token is the access control.
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

func (h *Hub) register(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

// unregister removes c. Only the caller that removes it closes its send
// channel, so shutdown and a client disconnect cannot double-close.
func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
	h.logger.Debug("stream client disconnected", "clients", n)
}

// Broadcast relays one item's state to every client watching that item.
// Slow clients miss frames rather than block the relay.
func (h *Hub) Broadcast(item string, payload []byte) {
	data, err := json.Marshal(StreamMessage{
		Type:      StreamTypeState,
		Item:      item,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   json.RawMessage(payload),
	})
	if err != nil {
		h.logger.Error("failed to marshal stream message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(item) {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

func (c *streamClient) wants(item string) bool {
	if c.items == nil {
		return true
	}
	_, ok := c.items[item]
	return ok
}

// subscribeStateUpdates relays every retained state the bridge publishes
// to stream clients.
func (s *Server) subscribeStateUpdates() error {
	if s.states == nil {
		return nil
	}

	topic := mqtt.Topics{}.AllStates()
	s.logger.Info("subscribing to state updates for the stream", "topic", topic)
	return s.states.Subscribe(topic, 1, func(t string, payload []byte) {
		item, ok := mqtt.ItemFromTopic(t)
		if !ok || !json.Valid(payload) {
			s.logger.Debug("ignoring state message", "topic", t)
			return
		}
		s.hub.Broadcast(item, payload)
	})
}

// handleStream upgrades to a WebSocket carrying item state changes.
// ?items=a,b limits the stream to those items.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", "error", err)
		return
	}

	client := &streamClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, streamSendBuffer),
	}
	if v := r.URL.Query().Get("items"); v != "" {
		client.items = make(map[string]struct{})
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				client.items[item] = struct{}{}
			}
		}
	}

	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// readPump consumes control frames so pongs and close are processed.
// Clients have nothing to say on this stream.
func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(streamMaxMessage)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(streamPingInterval + streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPingInterval + streamPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("stream read error", "error", err)
			}
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(streamPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(streamPongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(streamPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
