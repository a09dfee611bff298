package gpio

import (
	"fmt"
	"strconv"
)

// StateKind tags the type of a published state value.
type StateKind string

// Published state value kinds.
const (
	StateOnOff   StateKind = "onoff"
	StateDecimal StateKind = "decimal"
)

// StateValue is a normalised item state: a boolean for input pins or a
// decimal for temperatures.
type StateValue struct {
	Kind    StateKind
	OnOff   bool
	Decimal float64
}

// OnOffValue wraps a pin level.
func OnOffValue(on bool) StateValue { return StateValue{Kind: StateOnOff, OnOff: on} }

// DecimalValue wraps a decimal reading.
func DecimalValue(v float64) StateValue { return StateValue{Kind: StateDecimal, Decimal: v} }

// Value returns the state as a bool or float64.
func (v StateValue) Value() any {
	if v.Kind == StateOnOff {
		return v.OnOff
	}
	return v.Decimal
}

func (v StateValue) String() string {
	if v.Kind == StateOnOff {
		if v.OnOff {
			return "ON"
		}
		return "OFF"
	}
	return strconv.FormatFloat(v.Decimal, 'f', -1, 64)
}

// StatePublisher accepts normalised state updates for items.
type StatePublisher interface {
	PublishUpdate(item string, v StateValue)
}

// ReadingRecorder stores routed readings as history. Optional.
type ReadingRecorder interface {
	RecordPinState(item string, ep Endpoint, st PinState)
	RecordTemperature(item string, ep Endpoint, t Temperature)
}

// RouterOptions holds configuration for creating a telemetry router.
type RouterOptions struct {
	Resolver  Resolver
	Publisher StatePublisher

	// Recorder is optional; if nil readings are not kept as history.
	Recorder ReadingRecorder

	Logger Logger
}

// Router decodes inbound device frames, resolves the owning binding,
// updates its cached state and publishes the normalised value.
type Router struct {
	resolver  Resolver
	publisher StatePublisher
	recorder  ReadingRecorder
	logger    Logger
}

// NewRouter creates a telemetry router.
func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("state publisher is required")
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Router{
		resolver:  opts.Resolver,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
	}, nil
}

// Route handles one inbound frame. The frame is tried as a PinState and,
// only if that does not decode, as a Temperature. Frames matching
// neither, or resolving to no binding of the right mode, are dropped
// without error.
func (r *Router) Route(ep Endpoint, raw []byte) {
	if st, ok := DecodePinState(raw); ok {
		r.routePinState(ep, st)
		return
	}
	if t, ok := DecodeTemperature(raw); ok {
		r.routeTemperature(ep, t)
		return
	}

	telemetryTotal.WithLabelValues("unknown", "undecoded").Inc()
	r.logger.Debug("discarding undecodable frame", "endpoint", string(ep), "size", len(raw))
}

func (r *Router) routePinState(ep Endpoint, st PinState) {
	b, ok := r.resolver.ResolvePin(st.Number)
	if !ok {
		telemetryTotal.WithLabelValues("pin_state", "unresolved").Inc()
		r.logger.Debug("no binding for pin", "endpoint", string(ep), "pin", st.Number)
		return
	}
	in, ok := b.Role.(*InputPin)
	if !ok {
		telemetryTotal.WithLabelValues("pin_state", "mode_mismatch").Inc()
		r.logger.Debug("pin state for non-input binding", "item", b.Item, "mode", string(b.Mode()))
		return
	}

	in.Update(st)
	r.publisher.PublishUpdate(b.Item, OnOffValue(st.High))
	if r.recorder != nil {
		r.recorder.RecordPinState(b.Item, ep, st)
	}
	telemetryTotal.WithLabelValues("pin_state", "published").Inc()
}

func (r *Router) routeTemperature(ep Endpoint, t Temperature) {
	b, ok := r.resolver.ResolveDevice(t.DeviceID)
	if !ok {
		telemetryTotal.WithLabelValues("temperature", "unresolved").Inc()
		r.logger.Debug("no binding for sensor", "endpoint", string(ep), "device_id", t.DeviceID)
		return
	}
	sensor, ok := b.Role.(*TemperatureSensor)
	if !ok {
		telemetryTotal.WithLabelValues("temperature", "mode_mismatch").Inc()
		r.logger.Debug("temperature for non-sensor binding", "item", b.Item, "mode", string(b.Mode()))
		return
	}

	sensor.Update(t)
	r.publisher.PublishUpdate(b.Item, DecimalValue(t.Celsius()))
	if r.recorder != nil {
		r.recorder.RecordTemperature(b.Item, ep, t)
	}
	telemetryTotal.WithLabelValues("temperature", "published").Inc()
}
