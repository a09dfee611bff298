package gpio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/mqtt"
)

// Logger is the structured logger used throughout the package.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Command outcomes recorded for every command that reaches translation.
const (
	OutcomeSent     = "sent"
	OutcomeRejected = "rejected"
	OutcomeDropped  = "dropped"
)

// CommandRecord describes one handled command for the audit log.
type CommandRecord struct {
	CommandID string
	Item      string
	Endpoint  string
	Command   string
	EventKind string
	Outcome   string
	Error     string
	Source    string
}

// CommandRecorder persists command records. Optional.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
}

// Bridge wires the connection manager, command translator and telemetry
// router to the MQTT command and state bus.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID string
	qos      byte
	mqtt     MQTTClient
	registry *Registry
	manager  *Manager
	router   *Router
	health   *HealthReporter
	commands CommandRecorder

	framesRx         atomic.Uint64
	commandsSent     atomic.Uint64
	commandsRejected atomic.Uint64
	commandsDropped  atomic.Uint64

	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies this runtime in health messages.
	BridgeID string

	// Version is reported in health messages.
	Version string

	// MQTTClient is the command and state bus. Required.
	MQTTClient MQTTClient

	// QoS is used for every publish and subscription.
	QoS byte

	// Registry supplies bindings. Required.
	Registry *Registry

	// Factory creates device connections. Required.
	Factory ConnFactory

	// RefreshInterval is the reconciliation period. Defaults to 10s.
	RefreshInterval time.Duration

	// HealthInterval is the health report period. Defaults to 30s.
	HealthInterval time.Duration

	// Readings is optional telemetry history storage.
	Readings ReadingRecorder

	// Commands is optional command audit storage.
	Commands CommandRecorder

	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("connection factory is required")
	}

	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:  opts.BridgeID,
		qos:       opts.QoS,
		mqtt:      opts.MQTTClient,
		registry:  opts.Registry,
		commands:  opts.Commands,
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	router, err := NewRouter(RouterOptions{
		Resolver:  opts.Registry,
		Publisher: b,
		Recorder:  opts.Readings,
		Logger:    log,
	})
	if err != nil {
		ctxCancel()
		return nil, err
	}
	b.router = router

	manager, err := NewManager(ManagerOptions{
		Factory:   opts.Factory,
		Interval:  opts.RefreshInterval,
		OnMessage: b.handleInbound,
		Logger:    log,
	})
	if err != nil {
		ctxCancel()
		return nil, err
	}
	b.manager = manager

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:    opts.BridgeID,
		Version:     opts.Version,
		Interval:    opts.HealthInterval,
		Publisher:   opts.MQTTClient,
		Connections: manager,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to item commands, begins reconciling device
// connections and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	topic := mqtt.Topics{}.AllCommands()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", topic)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.manager.Run(b.ctx, b.registry)
	}()

	b.health.SetItemCount(b.registry.Len())
	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"items", b.registry.Len(),
		"endpoints", len(b.registry.Endpoints()),
		"refresh_interval", b.manager.Interval().String())

	return nil
}

// Stop gracefully shuts down the bridge and closes every device
// connection.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.manager.Close()

		b.logInfo("bridge stopped")
	})
}

// Refresh reconciles connections immediately, for use after the
// registry's providers change.
func (b *Bridge) Refresh() {
	b.manager.Reconcile(b.registry.Endpoints())
	b.health.SetItemCount(b.registry.Len())
}

// handleInbound is the manager's InboundHandler.
func (b *Bridge) handleInbound(ep Endpoint, payload []byte) {
	b.framesRx.Add(1)
	b.router.Route(ep, payload)
}

// handleMQTTMessage processes a command published for one item.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	item, ok := mqtt.ItemFromTopic(topic)
	if !ok {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	cmd, err := ParseCommandPayload(payload)
	if err != nil {
		b.publishAck(NewAckError(cmd, item, "", fmt.Errorf("%w: %v", ErrUnrecognizedCommand, err)))
		return
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}

	ep, ev, err := b.execute(b.ctx, item, cmd)
	if err != nil {
		b.publishAck(NewAckError(cmd, item, ep, err))
		return
	}
	b.publishAck(NewAckMessage(cmd, item, ep, ev))
}

// HandleCommand runs one command through translation and delivery. It
// is the single entry point for commands from MQTT and the HTTP API.
//
// Parameters:
//   - ctx: Context for the audit write
//   - item: Target item identity
//   - cmd: The raw command and its correlation metadata
//
// Returns:
//   - PinEvent: The event that was sent, or that failed to send
//   - error: A translation error, ErrItemNotConfigured, or ErrEndpointUnavailable
func (b *Bridge) HandleCommand(ctx context.Context, item string, cmd CommandMessage) (PinEvent, error) {
	_, ev, err := b.execute(ctx, item, cmd)
	return ev, err
}

func (b *Bridge) execute(ctx context.Context, item string, cmd CommandMessage) (Endpoint, PinEvent, error) {
	rec := CommandRecord{
		CommandID: cmd.ID,
		Item:      item,
		Command:   fmt.Sprint(cmd.Command),
		Source:    cmd.Source,
	}

	binding, ok := b.registry.ConfigFor(item)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrItemNotConfigured, item)
		b.reject(ctx, rec, err)
		return "", nil, err
	}
	rec.Endpoint = string(binding.Endpoint)

	ev, err := Translate(binding, cmd.Command)
	if err != nil {
		b.reject(ctx, rec, err)
		return binding.Endpoint, nil, err
	}
	rec.EventKind = string(ev.Kind())

	payload, err := EncodeEvent(ev)
	if err != nil {
		b.reject(ctx, rec, err)
		return binding.Endpoint, ev, err
	}

	if err := b.manager.Send(binding.Endpoint, payload); err != nil {
		b.commandsDropped.Add(1)
		commandsTotal.WithLabelValues(OutcomeDropped).Inc()
		b.logWarn("dropping command", "item", item, "event", rec.EventKind, "error", err)
		rec.Outcome, rec.Error = OutcomeDropped, err.Error()
		b.record(ctx, rec)
		return binding.Endpoint, ev, err
	}

	b.commandsSent.Add(1)
	commandsTotal.WithLabelValues(OutcomeSent).Inc()
	b.logDebug("command sent", "item", item, "endpoint", rec.Endpoint, "event", rec.EventKind)
	rec.Outcome = OutcomeSent
	b.record(ctx, rec)
	return binding.Endpoint, ev, nil
}

func (b *Bridge) reject(ctx context.Context, rec CommandRecord, err error) {
	b.commandsRejected.Add(1)
	commandsTotal.WithLabelValues(OutcomeRejected).Inc()
	b.logWarn("rejecting command", "item", rec.Item, "command", rec.Command, "error", err)
	rec.Outcome, rec.Error = OutcomeRejected, err.Error()
	b.record(ctx, rec)
}

func (b *Bridge) record(ctx context.Context, rec CommandRecord) {
	if b.commands == nil {
		return
	}
	if err := b.commands.RecordCommand(ctx, rec); err != nil {
		b.logError("failed to record command", err)
	}
}

// PublishUpdate publishes an item's normalised state, retained.
func (b *Bridge) PublishUpdate(item string, v StateValue) {
	payload, err := json.Marshal(NewStateMessage(item, v))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(mqtt.Topics{}.State(item), payload, b.qos, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}
	b.logDebug("published state", "item", item, "value", v.String())
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(mqtt.Topics{}.Ack(ack.Item), payload, b.qos, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// Items returns every binding with its cached values, in scan order.
func (b *Bridge) Items() []BindingSnapshot {
	bindings := b.registry.Bindings()
	out := make([]BindingSnapshot, 0, len(bindings))
	for _, bd := range bindings {
		out = append(out, bd.Snapshot())
	}
	return out
}

// Item returns one binding's cached values.
func (b *Bridge) Item(item string) (BindingSnapshot, bool) {
	bd, ok := b.registry.ConfigFor(item)
	if !ok {
		return BindingSnapshot{}, false
	}
	return bd.Snapshot(), true
}

// Connections returns the connection table.
func (b *Bridge) Connections() []ConnectionStatus {
	return b.manager.Snapshot()
}

// Manager returns the bridge's connection manager.
func (b *Bridge) Manager() *Manager {
	return b.manager
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// BridgeMetrics contains metrics data for the API health endpoint.
type BridgeMetrics struct {
	Status           string           `json:"status"`
	MQTTConnected    bool             `json:"mqtt_connected"`
	ItemsManaged     int              `json:"items_managed"`
	Connections      ConnectionCounts `json:"connections"`
	FramesReceived   uint64           `json:"frames_received"`
	CommandsSent     uint64           `json:"commands_sent"`
	CommandsRejected uint64           `json:"commands_rejected"`
	CommandsDropped  uint64           `json:"commands_dropped"`
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	status, _ := b.health.determineStatus()
	return BridgeMetrics{
		Status:           string(status),
		MQTTConnected:    b.mqtt.IsConnected(),
		ItemsManaged:     b.registry.Len(),
		Connections:      CountConnections(b.manager.Snapshot()),
		FramesReceived:   b.framesRx.Load(),
		CommandsSent:     b.commandsSent.Load(),
		CommandsRejected: b.commandsRejected.Load(),
		CommandsDropped:  b.commandsDropped.Load(),
	}
}
