package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/config"
)

// testConfig returns an MQTT configuration for tests that do not need a broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "gpioremote-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// doneToken is a completed paho token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho implements the parts of pahomqtt.Client the wrapper uses.
// Unused methods panic through the nil embedded interface.
type fakePaho struct {
	pahomqtt.Client

	mu           sync.Mutex
	connected    bool
	subscribed   []string
	failTopics   map[string]error
	publishes    []published
	disconnected bool
}

func newFakePaho() *fakePaho {
	return &fakePaho{connected: true, failTopics: make(map[string]error)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failTopics[topic]; err != nil {
		return doneToken{err: err}
	}
	f.subscribed = append(f.subscribed, topic)
	return doneToken{}
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := payload.([]byte)
	f.publishes = append(f.publishes, published{topic: topic, qos: qos, retained: retained, payload: body})
	return doneToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.disconnected = true
	f.connected = false
	f.mu.Unlock()
}

func (f *fakePaho) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func (f *fakePaho) lastPublish() (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.publishes) == 0 {
		return published{}, false
	}
	return f.publishes[len(f.publishes)-1], true
}

// newTestClient returns a connected Client over a fake paho client.
func newTestClient() (*Client, *fakePaho) {
	fake := newFakePaho()
	c := &Client{
		client:    fake,
		cfg:       testConfig(),
		bridgeID:  "garage-pi",
		clientID:  "gpioremote-test",
		connected: true,
	}
	return c, fake
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func decodeStatus(t *testing.T, payload []byte) StatusMessage {
	t.Helper()
	var msg StatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("status payload %s: %v", payload, err)
	}
	return msg
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestPublish(t *testing.T) {
	client, fake := newTestClient()

	if err := client.Publish(Topics{}.State("porch_light"), []byte(`{"value":true}`), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got, ok := fake.lastPublish()
	if !ok || got.topic != "gpioremote/state/porch_light" || !got.retained || got.qos != 1 {
		t.Errorf("published = %+v", got)
	}
}

func TestPublish_Validation(t *testing.T) {
	connected, _ := newTestClient()
	disconnected := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		client  *Client
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", connected, "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", connected, "gpioremote/state/a", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", connected, "gpioremote/state/a", make([]byte, maxPayloadSize+1), 1, ErrPayloadTooLarge},
		{"not connected", disconnected, "gpioremote/state/a", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	connected, _ := newTestClient()
	disconnected := &Client{cfg: testConfig()}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		client  *Client
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", connected, "", 1, noop, ErrInvalidTopic},
		{"invalid qos", connected, "gpioremote/command/+", 5, noop, ErrInvalidQoS},
		{"nil handler", connected, "gpioremote/command/+", 1, nil, ErrSubscribeFailed},
		{"not connected", disconnected, "gpioremote/command/+", 1, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(connected.subs) != 0 {
		t.Errorf("remembered %d subscriptions, want 0 after failed subscribes", len(connected.subs))
	}
}

func TestSubscribe_BrokerRejectionNotRemembered(t *testing.T) {
	client, fake := newTestClient()
	fake.failTopics[Topics{}.AllCommands()] = errors.New("not authorised")

	err := client.Subscribe(Topics{}.AllCommands(), 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
	if len(client.subs) != 0 {
		t.Errorf("remembered %d subscriptions, want 0", len(client.subs))
	}
}

func TestReconnect_RestoresSubscriptionsInOrder(t *testing.T) {
	client, fake := newTestClient()
	noop := func(string, []byte) error { return nil }

	topics := []string{Topics{}.AllCommands(), Topics{}.AllStates()}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, noop); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	// Re-subscribing replaces the handler without adding a second entry.
	if err := client.Subscribe(Topics{}.AllCommands(), 1, noop); err != nil {
		t.Fatalf("Subscribe() again error = %v", err)
	}

	reconnected := false
	client.SetOnConnect(func() { reconnected = true })
	client.handleDisconnect(errors.New("broker restart"))
	if client.IsConnected() {
		t.Fatal("IsConnected() = true after disconnect")
	}
	client.handleConnect()

	got := fake.topics()
	want := []string{
		"gpioremote/command/+", "gpioremote/state/+", "gpioremote/command/+",
		"gpioremote/command/+", "gpioremote/state/+",
	}
	if len(got) != len(want) {
		t.Fatalf("subscribe calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subscribe[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	status, ok := fake.lastPublish()
	if !ok || status.topic != (Topics{}).SystemStatus() || !status.retained {
		t.Fatalf("last publish = %+v, want retained system status", status)
	}
	msg := decodeStatus(t, status.payload)
	if msg.Status != StatusOnline || msg.Bridge != "garage-pi" || msg.ClientID != "gpioremote-test" {
		t.Errorf("status = %+v", msg)
	}
	if !reconnected {
		t.Error("OnConnect callback not called")
	}
}

func TestReconnect_LogsFailedResubscribe(t *testing.T) {
	client, fake := newTestClient()
	logger := &mockLogger{}
	client.SetLogger(logger)
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe(Topics{}.AllCommands(), 1, noop); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Subscribe(Topics{}.AllStates(), 1, noop); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	fake.mu.Lock()
	fake.failTopics[Topics{}.AllStates()] = errors.New("quota")
	fake.mu.Unlock()

	if n := client.restoreSubscriptions(); n != 1 {
		t.Errorf("restoreSubscriptions() = %d, want 1", n)
	}
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one resubscribe failure", logger.warns)
	}
}

func TestClose_PublishesShutdownStatus(t *testing.T) {
	client, fake := newTestClient()

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	status, ok := fake.lastPublish()
	if !ok || status.topic != (Topics{}).SystemStatus() {
		t.Fatalf("last publish = %+v, want system status", status)
	}
	msg := decodeStatus(t, status.payload)
	if msg.Status != StatusOffline || msg.Reason != ReasonShutdown {
		t.Errorf("status = %+v, want offline/shutdown", msg)
	}
	if !fake.disconnected {
		t.Error("Disconnect not called")
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestHandleDisconnect_Callback(t *testing.T) {
	client, _ := newTestClient()
	var got error
	client.SetOnDisconnect(func(err error) { got = err })

	client.handleDisconnect(errors.New("eof"))

	if got == nil || got.Error() != "eof" {
		t.Errorf("OnDisconnect got %v, want eof", got)
	}
}

func TestWrapHandler_DeliversMessage(t *testing.T) {
	client := &Client{}
	var gotTopic, gotPayload string

	wrapped := client.wrapHandler(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = string(payload)
		return nil
	})
	wrapped(nil, &fakeMessage{topic: "gpioremote/command/lamp", payload: []byte("ON")})

	if gotTopic != "gpioremote/command/lamp" || gotPayload != "ON" {
		t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
	}
}

func TestWrapHandler_LogsHandlerError(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		return errors.New("handler error")
	})
	wrapped(nil, &fakeMessage{topic: "gpioremote/command/lamp"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %d, want 1", len(logger.warns))
	}
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	client := &Client{}
	logger := &mockLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, &fakeMessage{topic: "gpioremote/command/lamp"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("errors = %d, want 1 panic log", len(logger.errors))
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "gpio"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg, "garage-pi")

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "gpioremote-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "gpio" {
		t.Errorf("Username = %q, want gpio", opts.Username)
	}
	if !opts.AutoReconnect || opts.ConnectRetryInterval != time.Second || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect = %v/%v/%v", opts.AutoReconnect, opts.ConnectRetryInterval, opts.MaxReconnectInterval)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg, "garage-pi")
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("TLS scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig should be set when TLS is enabled")
	}
}

func TestBuildClientOptions_Defaults(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = ""
	cfg.Reconnect = config.MQTTReconnectConfig{}

	opts := buildClientOptions(cfg, "shed")

	if opts.ClientID != "gpioremote-shed" {
		t.Errorf("ClientID = %q, want gpioremote-shed", opts.ClientID)
	}
	if opts.ConnectRetryInterval != defaultReconnectInitial || opts.MaxReconnectInterval != defaultReconnectMax {
		t.Errorf("reconnect = %v/%v", opts.ConnectRetryInterval, opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptions_Will(t *testing.T) {
	opts := buildClientOptions(testConfig(), "garage-pi")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != (Topics{}).SystemStatus() {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != statusQoS {
		t.Errorf("will retained/qos = %v/%d", opts.WillRetained, opts.WillQos)
	}
	msg := decodeStatus(t, opts.WillPayload)
	if msg.Status != StatusOffline || msg.Reason != ReasonConnectionLost || msg.Bridge != "garage-pi" {
		t.Errorf("will = %+v", msg)
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Command", topics.Command("garden-light"), "gpioremote/command/garden-light"},
		{"State", topics.State("doorbell"), "gpioremote/state/doorbell"},
		{"Ack", topics.Ack("garden-light"), "gpioremote/ack/garden-light"},
		{"Health", topics.Health("garage-pi"), "gpioremote/health/garage-pi"},
		{"SystemStatus", topics.SystemStatus(), "gpioremote/system/status"},
		{"AllCommands", topics.AllCommands(), "gpioremote/command/+"},
		{"AllStates", topics.AllStates(), "gpioremote/state/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestItemFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"gpioremote/command/garden-light", "garden-light", true},
		{"gpioremote/state/doorbell", "doorbell", true},
		{"gpioremote/command/", "", false},
		{"gpioremote/command", "", false},
		{"other/command/lamp", "", false},
		{"gpioremote/command/a/b", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := ItemFromTopic(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ItemFromTopic(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
