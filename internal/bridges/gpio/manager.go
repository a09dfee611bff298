package gpio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultRefreshInterval is the reconciliation period used when none is
// configured.
const DefaultRefreshInterval = 10 * time.Second

// EndpointSource yields the endpoints currently referenced by bindings.
type EndpointSource interface {
	Endpoints() []Endpoint
}

// ManagerOptions holds configuration for creating a connection manager.
type ManagerOptions struct {
	// Factory creates connections. Required.
	Factory ConnFactory

	// Interval is the reconciliation period. Defaults to 10s.
	Interval time.Duration

	// OnMessage receives inbound frames from every connection.
	OnMessage InboundHandler

	Logger Logger
}

// ConnectionStatus is a read-only view of one connection table entry.
type ConnectionStatus struct {
	Endpoint  Endpoint  `json:"endpoint"`
	State     ConnState `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type managedConn struct {
	conn      Conn
	createdAt time.Time
}

// Manager owns exactly one connection per referenced endpoint.
//
// The table is changed only by Reconcile and Close. Send and Snapshot
// read it. A connection that is not open is never repaired in place; the
// next reconciliation closes it and opens a replacement.
//
// Thread Safety: All methods are safe for concurrent use.
type Manager struct {
	factory   ConnFactory
	interval  time.Duration
	onMessage InboundHandler
	logger    Logger

	mu    sync.Mutex
	conns map[Endpoint]*managedConn
}

// NewManager creates a connection manager with an empty table.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("connection factory is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	return &Manager{
		factory:   opts.Factory,
		interval:  opts.Interval,
		onMessage: opts.OnMessage,
		logger:    opts.Logger,
		conns:     make(map[Endpoint]*managedConn),
	}, nil
}

// Interval returns the reconciliation period.
func (m *Manager) Interval() time.Duration { return m.interval }

// Reconcile brings the table in line with endpoints.
//
// Entries for endpoints no longer referenced are closed and removed.
// Every referenced endpoint then gets a fresh connection unless its
// current one is open; a connection still handshaking is treated as
// stuck and replaced. Replaced connections are closed before their
// successors are opened, and Reconcile does not wait for handshakes.
func (m *Manager) Reconcile(endpoints []Endpoint) {
	wanted := make(map[Endpoint]struct{}, len(endpoints))
	order := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if _, dup := wanted[ep]; !dup {
			wanted[ep] = struct{}{}
			order = append(order, ep)
		}
	}

	var retire, fresh []Conn
	now := time.Now().UTC()

	m.mu.Lock()
	for ep, mc := range m.conns {
		if _, ok := wanted[ep]; !ok {
			delete(m.conns, ep)
			if mc.conn != nil {
				retire = append(retire, mc.conn)
			}
			m.logger.Info("pruning unreferenced endpoint", "endpoint", string(ep))
		}
	}

	for _, ep := range order {
		mc := m.conns[ep]
		if mc != nil && mc.conn != nil {
			st := mc.conn.State()
			if st == StateOpen {
				continue
			}
			retire = append(retire, mc.conn)
			m.logger.Info("replacing device connection", "endpoint", string(ep), "state", st.String())
		}

		c := m.factory(ep, m.onMessage)
		m.conns[ep] = &managedConn{conn: c, createdAt: now}
		fresh = append(fresh, c)
	}
	m.mu.Unlock()

	for _, c := range retire {
		if err := c.Close(); err != nil {
			m.logger.Debug("closing device connection", "endpoint", string(c.Endpoint()), "error", err)
		}
	}
	for _, c := range fresh {
		c.Open()
	}

	connectionsOpened.Add(float64(len(fresh)))
}

// Send writes payload on the endpoint's connection. It fails with
// ErrEndpointUnavailable if the endpoint has no open connection or the
// write fails; nothing is retried or queued.
func (m *Manager) Send(ep Endpoint, payload []byte) error {
	m.mu.Lock()
	mc := m.conns[ep]
	m.mu.Unlock()

	if mc == nil || mc.conn == nil {
		return fmt.Errorf("%w: no connection to %s", ErrEndpointUnavailable, ep)
	}
	if st := mc.conn.State(); st != StateOpen {
		return fmt.Errorf("%w: %s is %s", ErrEndpointUnavailable, ep, st)
	}
	if err := mc.conn.Send(payload); err != nil {
		if errors.Is(err, ErrEndpointUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrEndpointUnavailable, ep, err)
	}
	return nil
}

// Snapshot returns the connection table sorted by endpoint.
func (m *Manager) Snapshot() []ConnectionStatus {
	m.mu.Lock()
	out := make([]ConnectionStatus, 0, len(m.conns))
	for ep, mc := range m.conns {
		st := StateClosed
		if mc.conn != nil {
			st = mc.conn.State()
		}
		out = append(out, ConnectionStatus{Endpoint: ep, State: st, CreatedAt: mc.createdAt})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// Run reconciles against src immediately and then once per interval
// until ctx is cancelled. It does not close connections on return; call
// Close for that.
func (m *Manager) Run(ctx context.Context, src EndpointSource) {
	m.Reconcile(src.Endpoints())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reconcile(src.Endpoints())
		}
	}
}

// Close closes every connection and empties the table.
func (m *Manager) Close() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[Endpoint]*managedConn)
	m.mu.Unlock()

	for ep, mc := range conns {
		if mc.conn == nil {
			continue
		}
		if err := mc.conn.Close(); err != nil {
			m.logger.Debug("closing device connection", "endpoint", string(ep), "error", err)
		}
	}
}
