package gpio

import (
	"encoding/json"
	"fmt"
)

// EventKind tags a PinEvent on the wire.
type EventKind string

// Pin event kinds understood by the device server.
const (
	EventSet        EventKind = "SET"
	EventDim        EventKind = "DIM"
	EventFade       EventKind = "FADE"
	EventFadeUpDown EventKind = "FADE_UP_DOWN"
	EventBlink      EventKind = "BLINK"
)

// PinEvent is a single validated request to a device output pin.
//
// The set of implementations is closed: SetEvent, DimEvent, FadeEvent and
// BlinkEvent. Percentage fields are clamped when the event is constructed,
// so an event that exists is always valid to send.
type PinEvent interface {
	Kind() EventKind
	Pin() int
	pinEvent()
}

// ClampPercent saturates v to the range [0,100].
func ClampPercent(v int) int {
	return min(max(v, 0), 100)
}

// SetEvent switches a pin fully on or off.
type SetEvent struct {
	Number     int  `json:"number"`
	OutputHigh bool `json:"outputHigh"`
}

// NewSet creates a SET event.
func NewSet(pin int, high bool) SetEvent {
	return SetEvent{Number: pin, OutputHigh: high}
}

func (e SetEvent) Kind() EventKind { return EventSet }
func (e SetEvent) Pin() int { return e.Number }
func (SetEvent) pinEvent() {}

// MarshalJSON encodes the event with its kind tag.
func (e SetEvent) MarshalJSON() ([]byte, error) {
	type wire SetEvent
	return json.Marshal(struct {
		Event EventKind `json:"event"`
		wire
	}{EventSet, wire(e)})
}

// DimEvent sets a steady PWM duty on a pin.
type DimEvent struct {
	Number int `json:"number"`
	PWM    int `json:"pwmValue"`
}

// NewDim creates a DIM event with the duty clamped to [0,100].
func NewDim(pin, pwm int) DimEvent {
	return DimEvent{Number: pin, PWM: ClampPercent(pwm)}
}

func (e DimEvent) Kind() EventKind { return EventDim }
func (e DimEvent) Pin() int { return e.Number }
func (DimEvent) pinEvent() {}

// MarshalJSON encodes the event with its kind tag.
func (e DimEvent) MarshalJSON() ([]byte, error) {
	type wire DimEvent
	return json.Marshal(struct {
		Event EventKind `json:"event"`
		wire
	}{EventDim, wire(e)})
}

// FadeEvent ramps a pin between two duty values. With UpDown set the ramp
// runs start→end→start each cycle and the event is tagged FADE_UP_DOWN.
// Durations are in milliseconds.
type FadeEvent struct {
	Number        int  `json:"number"`
	UpDown        bool `json:"-"`
	CycleDuration int  `json:"cycleDuration"`
	StartVal      int  `json:"startVal"`
	EndVal        int  `json:"endVal"`
	Repeat        bool `json:"repeat"`
	Cycles        int  `json:"cycles"`
	CyclePause    int  `json:"cyclePause"`
}

// NewFade creates a FADE event with start and end clamped to [0,100].
func NewFade(pin, cycleDuration, startVal, endVal int, repeat bool, cycles, cyclePause int) FadeEvent {
	return FadeEvent{
		Number:        pin,
		CycleDuration: cycleDuration,
		StartVal:      ClampPercent(startVal),
		EndVal:        ClampPercent(endVal),
		Repeat:        repeat,
		Cycles:        cycles,
		CyclePause:    cyclePause,
	}
}

// NewFadeUpDown creates a FADE_UP_DOWN event. Fields follow NewFade.
func NewFadeUpDown(pin, cycleDuration, startVal, endVal int, repeat bool, cycles, cyclePause int) FadeEvent {
	e := NewFade(pin, cycleDuration, startVal, endVal, repeat, cycles, cyclePause)
	e.UpDown = true
	return e
}

func (e FadeEvent) Kind() EventKind {
	if e.UpDown {
		return EventFadeUpDown
	}
	return EventFade
}

func (e FadeEvent) Pin() int { return e.Number }
func (FadeEvent) pinEvent() {}

// MarshalJSON encodes the event with its kind tag.
func (e FadeEvent) MarshalJSON() ([]byte, error) {
	type wire FadeEvent
	return json.Marshal(struct {
		Event EventKind `json:"event"`
		wire
	}{e.Kind(), wire(e)})
}

// BlinkEvent toggles a pin between a PWM duty and off.
type BlinkEvent struct {
	Number   int  `json:"number"`
	Uptime   int  `json:"uptime"`
	Downtime int  `json:"downtime"`
	PWM      int  `json:"pwmValue"`
	Repeat   bool `json:"repeat"`
	Cycles   int  `json:"cycles"`
}

// NewBlink creates a BLINK event with the duty clamped to [0,100].
func NewBlink(pin, uptime, downtime, pwm int, repeat bool, cycles int) BlinkEvent {
	return BlinkEvent{
		Number:   pin,
		Uptime:   uptime,
		Downtime: downtime,
		PWM:      ClampPercent(pwm),
		Repeat:   repeat,
		Cycles:   cycles,
	}
}

func (e BlinkEvent) Kind() EventKind { return EventBlink }
func (e BlinkEvent) Pin() int { return e.Number }
func (BlinkEvent) pinEvent() {}

// MarshalJSON encodes the event with its kind tag.
func (e BlinkEvent) MarshalJSON() ([]byte, error) {
	type wire BlinkEvent
	return json.Marshal(struct {
		Event EventKind `json:"event"`
		wire
	}{EventBlink, wire(e)})
}

// EncodeEvent serialises a pin event into its wire form.
func EncodeEvent(ev PinEvent) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidFieldValue)
	}
	return json.Marshal(ev)
}

// DecodeEvent parses a wire-form pin event. Percentage fields are clamped
// again on the way in, so a hand-written payload cannot carry 150%.
func DecodeEvent(data []byte) (PinEvent, error) {
	var head struct {
		Event EventKind `json:"event"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	switch head.Event {
	case EventSet:
		var e SetEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", head.Event, err)
		}
		return NewSet(e.Number, e.OutputHigh), nil
	case EventDim:
		var e DimEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", head.Event, err)
		}
		return NewDim(e.Number, e.PWM), nil
	case EventFade, EventFadeUpDown:
		var e FadeEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", head.Event, err)
		}
		if head.Event == EventFadeUpDown {
			return NewFadeUpDown(e.Number, e.CycleDuration, e.StartVal, e.EndVal, e.Repeat, e.Cycles, e.CyclePause), nil
		}
		return NewFade(e.Number, e.CycleDuration, e.StartVal, e.EndVal, e.Repeat, e.Cycles, e.CyclePause), nil
	case EventBlink:
		var e BlinkEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", head.Event, err)
		}
		return NewBlink(e.Number, e.Uptime, e.Downtime, e.PWM, e.Repeat, e.Cycles), nil
	default:
		return nil, fmt.Errorf("decoding event: unknown kind %q", head.Event)
	}
}
