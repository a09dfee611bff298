package gpio

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Endpoint is the host:port address of one remote device server.
// It keys the connection table; several items may share one Endpoint.
type Endpoint string

// URL builds the WebSocket URL used to dial the endpoint.
func (e Endpoint) URL(scheme, path string) string {
	u := url.URL{Scheme: scheme, Host: string(e), Path: path}
	return u.String()
}

// Mode is the role a binding plays on its device.
type Mode string

// Binding modes as written in binding strings.
const (
	ModeOut         Mode = "out"
	ModeIn          Mode = "in"
	ModeTemperature Mode = "temperature"
)

// ParseMode parses a binding mode token.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeOut, ModeIn, ModeTemperature:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidBinding, s)
	}
}

// Role is the mode-specific half of a Binding. Exactly one of
// *OutputPin, *InputPin or *TemperatureSensor.
type Role interface {
	Mode() Mode

	// key is the pin number or device id as text.
	key() string
}

// OutputPin is a pin driven by commands. It caches the last commanded
// PWM duty so relative commands (toggle, increase) have a base.
type OutputPin struct {
	Number int

	mu   sync.Mutex
	duty int
}

func (p *OutputPin) Mode() Mode { return ModeOut }
func (p *OutputPin) key() string { return strconv.Itoa(p.Number) }

// Duty returns the cached PWM duty.
func (p *OutputPin) Duty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// SetDuty stores a new duty, clamped to [0,100].
func (p *OutputPin) SetDuty(v int) {
	p.mu.Lock()
	p.setDutyLocked(v)
	p.mu.Unlock()
}

func (p *OutputPin) setDutyLocked(v int) {
	p.duty = ClampPercent(v)
}

// On reports the cached on/off semantic: any non-zero duty is on.
func (p *OutputPin) On() bool {
	return p.Duty() > 0
}

// InputPin is a pin whose level is reported by the device.
type InputPin struct {
	Number int

	mu              sync.Mutex
	high            bool
	sinceLastChange int64
	updatedAt       time.Time
}

func (p *InputPin) Mode() Mode { return ModeIn }
func (p *InputPin) key() string { return strconv.Itoa(p.Number) }

// Update overwrites the cached level with a reading.
func (p *InputPin) Update(st PinState) {
	p.mu.Lock()
	p.high = st.High
	p.sinceLastChange = st.SinceLastChange
	p.updatedAt = time.Now().UTC()
	p.mu.Unlock()
}

// State returns the cached level, milliseconds since its last change as
// reported by the device, and when the reading arrived (zero if never).
func (p *InputPin) State() (high bool, sinceLastChange int64, updatedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high, p.sinceLastChange, p.updatedAt
}

// TemperatureSensor is a one-wire style sensor identified by device id.
type TemperatureSensor struct {
	DeviceID string

	mu    sync.Mutex
	milli int64
	seen  bool
}

func (s *TemperatureSensor) Mode() Mode { return ModeTemperature }
func (s *TemperatureSensor) key() string { return s.DeviceID }

// Update overwrites the cached reading.
func (s *TemperatureSensor) Update(t Temperature) {
	s.mu.Lock()
	s.milli = t.MilliDegrees
	s.seen = true
	s.mu.Unlock()
}

// Reading returns the cached milli-degree value and whether any reading
// has arrived yet.
func (s *TemperatureSensor) Reading() (milli int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.milli, s.seen
}

// Binding associates one item with one pin or sensor on an endpoint.
// Topology is fixed at load time; only the cached values in Role change.
type Binding struct {
	Item     string
	Endpoint Endpoint
	Role     Role
}

// NewOutputBinding binds item to an output pin.
func NewOutputBinding(item string, ep Endpoint, pin int) *Binding {
	return &Binding{Item: item, Endpoint: ep, Role: &OutputPin{Number: pin}}
}

// NewInputBinding binds item to an input pin.
func NewInputBinding(item string, ep Endpoint, pin int) *Binding {
	return &Binding{Item: item, Endpoint: ep, Role: &InputPin{Number: pin}}
}

// NewTemperatureBinding binds item to a temperature sensor.
func NewTemperatureBinding(item string, ep Endpoint, deviceID string) *Binding {
	return &Binding{Item: item, Endpoint: ep, Role: &TemperatureSensor{DeviceID: deviceID}}
}

// Mode returns the binding's active mode.
func (b *Binding) Mode() Mode { return b.Role.Mode() }

// Key returns the pin number or sensor device id as written in the
// binding string.
func (b *Binding) Key() string { return b.Role.key() }

// PinNumber returns the pin of an input or output binding.
func (b *Binding) PinNumber() (int, bool) {
	switch r := b.Role.(type) {
	case *OutputPin:
		return r.Number, true
	case *InputPin:
		return r.Number, true
	}
	return 0, false
}

// SensorID returns the device id of a temperature binding.
func (b *Binding) SensorID() (string, bool) {
	if r, ok := b.Role.(*TemperatureSensor); ok {
		return r.DeviceID, true
	}
	return "", false
}

// BindingSnapshot is a read-only view of a binding and its cached values.
type BindingSnapshot struct {
	Item     string   `json:"item"`
	Endpoint Endpoint `json:"endpoint"`
	Mode     Mode     `json:"mode"`
	Pin      *int     `json:"pin,omitempty"`
	DeviceID string   `json:"device_id,omitempty"`

	Duty              *int       `json:"duty,omitempty"`
	High              *bool      `json:"high,omitempty"`
	SinceLastChangeMs *int64     `json:"since_last_change_ms,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	Celsius           *float64   `json:"celsius,omitempty"`
}

// Snapshot copies the binding's current cached values.
func (b *Binding) Snapshot() BindingSnapshot {
	s := BindingSnapshot{Item: b.Item, Endpoint: b.Endpoint, Mode: b.Mode()}

	switch r := b.Role.(type) {
	case *OutputPin:
		pin, duty := r.Number, r.Duty()
		s.Pin, s.Duty = &pin, &duty
	case *InputPin:
		pin := r.Number
		s.Pin = &pin
		if high, since, at := r.State(); !at.IsZero() {
			s.High, s.SinceLastChangeMs, s.UpdatedAt = &high, &since, &at
		}
	case *TemperatureSensor:
		s.DeviceID = r.DeviceID
		if milli, ok := r.Reading(); ok {
			c := Temperature{MilliDegrees: milli}.Celsius()
			s.Celsius = &c
		}
	}
	return s
}
