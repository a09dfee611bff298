package gpio

import (
	"context"
	"sync"
	"testing"
	"time"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []string
	connected     bool
	handlers      []func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{connected: true}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, topic)
	m.handlers = append(m.handlers, handler)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

// SimulateMessage delivers a message to every subscribed handler.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handlers := append([]func(string, []byte){}, m.handlers...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns messages published on topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subscriptions...)
}

// fakeConn is an in-memory Conn whose state tests drive directly.
type fakeConn struct {
	ep        Endpoint
	onMessage InboundHandler
	log       *eventLog
	id        int

	mu             sync.Mutex
	state          ConnState
	stayConnecting bool
	opened         int
	closed         int
	sent           [][]byte
	sendErr        error
}

func (c *fakeConn) Endpoint() Endpoint { return c.ep }

func (c *fakeConn) Open() {
	c.mu.Lock()
	c.opened++
	if !c.stayConnecting {
		c.state = StateOpen
	}
	c.mu.Unlock()
	c.log.add("open", c.ep, c.id)
}

func (c *fakeConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.state = StateClosed
	c.mu.Unlock()
	c.log.add("close", c.ep, c.id)
	return nil
}

func (c *fakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) counts() (opened, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}

// deliver simulates an inbound frame from the device.
func (c *fakeConn) deliver(payload string) {
	c.onMessage(c.ep, []byte(payload))
}

type logEntry struct {
	op string
	ep Endpoint
	id int
}

type eventLog struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *eventLog) add(op string, ep Endpoint, id int) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{op: op, ep: ep, id: id})
	l.mu.Unlock()
}

func (l *eventLog) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

// fakeFactory records every connection it creates.
type fakeFactory struct {
	mu             sync.Mutex
	conns          []*fakeConn
	stayConnecting bool
	log            eventLog
}

func (f *fakeFactory) New(ep Endpoint, onMessage InboundHandler) Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{
		ep:             ep,
		onMessage:      onMessage,
		log:            &f.log,
		id:             len(f.conns) + 1,
		state:          StateConnecting,
		stayConnecting: f.stayConnecting,
	}
	f.conns = append(f.conns, c)
	return c
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// latest returns the most recent connection created for ep.
func (f *fakeFactory) latest(ep Endpoint) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.conns) - 1; i >= 0; i-- {
		if f.conns[i].ep == ep {
			return f.conns[i]
		}
	}
	return nil
}

type stateUpdate struct {
	item  string
	value StateValue
}

// recordingPublisher implements StatePublisher.
type recordingPublisher struct {
	mu      sync.Mutex
	updates []stateUpdate
}

func (p *recordingPublisher) PublishUpdate(item string, v StateValue) {
	p.mu.Lock()
	p.updates = append(p.updates, stateUpdate{item: item, value: v})
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []stateUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]stateUpdate(nil), p.updates...)
}

// mockCommandRecorder implements CommandRecorder.
type mockCommandRecorder struct {
	mu      sync.Mutex
	records []CommandRecord
}

func (r *mockCommandRecorder) RecordCommand(_ context.Context, rec CommandRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

func (r *mockCommandRecorder) all() []CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CommandRecord(nil), r.records...)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// mustItems builds an ItemSet or fails the test.
func mustItems(t *testing.T, bindings ...*Binding) *ItemSet {
	t.Helper()
	set, err := NewItemSet(bindings...)
	if err != nil {
		t.Fatalf("NewItemSet() error = %v", err)
	}
	return set
}
