package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of a device connection.
type ConnState int32

// Connection states.
const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
	StateFaulted
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Conn is a long-lived connection to one endpoint. It is created in
// StateConnecting and owned by the Manager.
type Conn interface {
	Endpoint() Endpoint

	// Open starts the handshake and returns without waiting for it.
	Open()

	State() ConnState

	// Send writes one frame. It fails unless the connection is open.
	Send(payload []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// InboundHandler receives every frame read from an open connection.
type InboundHandler func(ep Endpoint, payload []byte)

// ConnFactory creates an unopened connection for an endpoint.
type ConnFactory func(ep Endpoint, onMessage InboundHandler) Conn

// DialerConfig configures WebSocket device connections.
type DialerConfig struct {
	// Scheme is "ws" or "wss".
	Scheme string

	// Path is appended to the endpoint when dialling.
	Path string

	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write. Zero means no deadline.
	WriteTimeout time.Duration

	Logger Logger
}

// closeGrace bounds the close frame written on a local Close.
const closeGrace = time.Second

// WebSocketFactory returns a ConnFactory dialling device servers over
// WebSocket.
func WebSocketFactory(cfg DialerConfig) ConnFactory {
	if cfg.Scheme == "" {
		cfg.Scheme = "ws"
	}
	dialer := &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}

	return func(ep Endpoint, onMessage InboundHandler) Conn {
		ctx, cancel := context.WithCancel(context.Background())
		return &wsConn{
			ep:           ep,
			url:          ep.URL(cfg.Scheme, cfg.Path),
			dialer:       dialer,
			writeTimeout: cfg.WriteTimeout,
			onMessage:    onMessage,
			logger:       cfg.Logger,
			ctx:          ctx,
			cancel:       cancel,
		}
	}
}

// wsConn is a Conn over gorilla/websocket. One goroutine dials and then
// reads; writers serialise on mu.
type wsConn struct {
	ep           Endpoint
	url          string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	onMessage    InboundHandler
	logger       Logger

	ctx    context.Context
	cancel context.CancelFunc

	state   atomic.Int32
	closing atomic.Bool

	mu   sync.Mutex // guards conn and frame writes
	conn *websocket.Conn

	openOnce  sync.Once
	closeOnce sync.Once
}

func (c *wsConn) Endpoint() Endpoint { return c.ep }

func (c *wsConn) State() ConnState { return ConnState(c.state.Load()) }

func (c *wsConn) setState(s ConnState) { c.state.Store(int32(s)) }

func (c *wsConn) Open() {
	c.openOnce.Do(func() { go c.run() })
}

func (c *wsConn) run() {
	ws, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		if c.closing.Load() {
			c.setState(StateClosed)
			return
		}
		c.setState(StateFaulted)
		c.log().Warn("device connection failed", "endpoint", string(c.ep), "error", err)
		return
	}

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.conn = ws
	c.setState(StateOpen)
	c.mu.Unlock()

	c.log().Info("device connected", "endpoint", string(c.ep))
	c.readLoop(ws)
}

func (c *wsConn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}
		c.deliver(data)
	}
}

func (c *wsConn) readFailed(err error) {
	// 1006 means the socket dropped without a close frame.
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure:
		c.setState(StateClosed)
		c.log().Info("device connection closed",
			"endpoint", string(c.ep), "code", ce.Code, "reason", ce.Text)
	case c.closing.Load():
		c.setState(StateClosed)
	default:
		// Left for the next reconciliation to replace.
		c.setState(StateFaulted)
		c.log().Warn("device connection error", "endpoint", string(c.ep), "error", err)
	}
}

func (c *wsConn) deliver(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log().Error("panic in inbound handler", "endpoint", string(c.ep), "panic", r)
		}
	}()
	if c.onMessage != nil {
		c.onMessage(c.ep, data)
	}
}

func (c *wsConn) Send(payload []byte) error {
	if st := c.State(); st != StateOpen {
		return fmt.Errorf("%w: %s is %s", ErrEndpointUnavailable, c.ep, st)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("%w: %s has no socket", ErrEndpointUnavailable, c.ep)
	}
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !c.closing.Load() {
			c.setState(StateFaulted)
		}
		return fmt.Errorf("%w: %s: %v", ErrEndpointUnavailable, c.ep, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.cancel()

		c.mu.Lock()
		if c.conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
			err = c.conn.Close()
		}
		c.mu.Unlock()

		c.setState(StateClosed)
	})
	return err
}

func (c *wsConn) log() Logger {
	if c.logger == nil {
		return nopLogger{}
	}
	return c.logger
}
