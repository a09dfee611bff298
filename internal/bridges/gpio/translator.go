package gpio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Direction is a relative dimming command.
type Direction int

// Relative dimming directions.
const (
	Increase Direction = iota + 1
	Decrease
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Command pattern prefixes. Each is followed by underscore-separated fields.
const (
	patternDim        = "dim"
	patternFade       = "fade"
	patternFadeUpDown = "fadeupdown"
	patternBlink      = "blink"
)

// Translate turns a raw command for an output-pin binding into a PinEvent.
//
// raw may be a bool (on/off), a Direction, a string token such as "toggle",
// "dim_40", "fade_400_0_100" or "blink_200", an integer, or a json.Number.
// Tokens are matched case-insensitively and the first matching form wins.
//
// On success the binding's cached duty is updated as part of the same
// critical section, so concurrent commands to one pin never lose an update.
// On failure nothing changes, except that any recognised blink command
// resets the cached duty to 0.
//
// Returns:
//   - PinEvent: the event to send to the binding's endpoint
//   - error: ErrNotAnOutput, ErrUnrecognizedCommand, or a *FieldCountError
//     or *FieldValueError for a recognised pattern with bad fields
func Translate(b *Binding, raw any) (PinEvent, error) {
	if b == nil || b.Role == nil {
		return nil, ErrItemNotConfigured
	}
	out, ok := b.Role.(*OutputPin)
	if !ok {
		return nil, fmt.Errorf("%w: item %q is bound as %s", ErrNotAnOutput, b.Item, b.Mode())
	}

	tok, ok := normalizeCommand(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedCommand, raw)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	return translateLocked(out, tok)
}

// normalizeCommand reduces the accepted raw command types to a lower-case
// token.
func normalizeCommand(raw any) (string, bool) {
	switch v := raw.(type) {
	case bool:
		if v {
			return "on", true
		}
		return "off", true
	case Direction:
		if v != Increase && v != Decrease {
			return "", false
		}
		return v.String(), true
	case string:
		return strings.ToLower(strings.TrimSpace(v)), true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func translateLocked(p *OutputPin, tok string) (PinEvent, error) {
	switch tok {
	case "on":
		p.setDutyLocked(100)
		return NewSet(p.Number, true), nil
	case "off":
		p.setDutyLocked(0)
		return NewSet(p.Number, false), nil
	case "toggle":
		if p.duty < 100 {
			p.setDutyLocked(100)
			return NewSet(p.Number, true), nil
		}
		p.setDutyLocked(0)
		return NewSet(p.Number, false), nil
	case "increase":
		// Emits duty+1 and stores duty+1; decrease emits the old duty.
		ev := NewDim(p.Number, p.duty+1)
		p.setDutyLocked(p.duty + 1)
		return ev, nil
	case "decrease":
		ev := NewDim(p.Number, p.duty)
		p.setDutyLocked(p.duty - 1)
		return ev, nil
	}

	if rest, ok := strings.CutPrefix(tok, patternDim+"_"); ok {
		return translateDim(p, rest)
	}
	if rest, ok := strings.CutPrefix(tok, patternFade+"_"); ok {
		return translateFade(p, patternFade, rest)
	}
	if rest, ok := strings.CutPrefix(tok, patternFadeUpDown+"_"); ok {
		return translateFade(p, patternFadeUpDown, rest)
	}
	if rest, ok := strings.CutPrefix(tok, patternBlink+"_"); ok {
		return translateBlink(p, rest)
	}

	if n, err := strconv.Atoi(tok); err == nil && n >= 0 {
		p.setDutyLocked(n)
		return NewDim(p.Number, n), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, tok)
}

func translateDim(p *OutputPin, rest string) (PinEvent, error) {
	f := strings.Split(rest, "_")
	if len(f) != 1 {
		return nil, &FieldCountError{Pattern: patternDim, Expected: "1", Found: len(f)}
	}
	v, err := intField(patternDim, "pwmValue", f[0])
	if err != nil {
		return nil, err
	}
	ev := NewDim(p.Number, v)
	p.setDutyLocked(v)
	return ev, nil
}

// translateFade handles fade_<duration>_<start>_<end>[_<repeat>_<cycles>_<pause>]
// and the fadeupdown form with the same grammar.
func translateFade(p *OutputPin, pattern, rest string) (PinEvent, error) {
	f := strings.Split(rest, "_")
	if len(f) != 3 && len(f) != 6 {
		return nil, &FieldCountError{Pattern: pattern, Expected: "3 or 6", Found: len(f)}
	}

	duration, err := intField(pattern, "cycleDuration", f[0])
	if err != nil {
		return nil, err
	}
	start, err := intField(pattern, "startVal", f[1])
	if err != nil {
		return nil, err
	}
	end, err := intField(pattern, "endVal", f[2])
	if err != nil {
		return nil, err
	}

	var (
		repeat             bool
		cycles, cyclePause int
	)
	if len(f) == 6 {
		if repeat, err = boolField(pattern, "repeat", f[3]); err != nil {
			return nil, err
		}
		if cycles, err = intField(pattern, "cycles", f[4]); err != nil {
			return nil, err
		}
		if cyclePause, err = intField(pattern, "cyclePause", f[5]); err != nil {
			return nil, err
		}
	}

	var ev FadeEvent
	if pattern == patternFadeUpDown {
		ev = NewFadeUpDown(p.Number, duration, start, end, repeat, cycles, cyclePause)
	} else {
		ev = NewFade(p.Number, duration, start, end, repeat, cycles, cyclePause)
	}
	p.setDutyLocked(end)
	return ev, nil
}

// translateBlink handles blink_<uptime>[_<downtime>_<pwm>_<repeat>_<cycles>].
// A blink leaves the pin's steady state undefined, so the cached duty is
// reset before the fields are even checked.
func translateBlink(p *OutputPin, rest string) (PinEvent, error) {
	p.setDutyLocked(0)

	f := strings.Split(rest, "_")
	if len(f) != 1 && len(f) != 5 {
		return nil, &FieldCountError{Pattern: patternBlink, Expected: "1 or 5", Found: len(f)}
	}

	uptime, err := intField(patternBlink, "uptime", f[0])
	if err != nil {
		return nil, err
	}
	if len(f) == 1 {
		return NewBlink(p.Number, uptime, 1, 100, false, 0), nil
	}

	downtime, err := intField(patternBlink, "downtime", f[1])
	if err != nil {
		return nil, err
	}
	pwm, err := intField(patternBlink, "pwmValue", f[2])
	if err != nil {
		return nil, err
	}
	repeat, err := boolField(patternBlink, "repeat", f[3])
	if err != nil {
		return nil, err
	}
	cycles, err := intField(patternBlink, "cycles", f[4])
	if err != nil {
		return nil, err
	}
	return NewBlink(p.Number, uptime, downtime, pwm, repeat, cycles), nil
}

func intField(pattern, name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldValueError{Pattern: pattern, Field: name, Value: s, Err: err}
	}
	return v, nil
}

func boolField(pattern, name, s string) (bool, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, &FieldValueError{Pattern: pattern, Field: name, Value: s, Err: err}
	}
	return v, nil
}
