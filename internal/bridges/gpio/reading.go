package gpio

import "encoding/json"

// UnsetPin marks a PinState whose number was absent from the message.
const UnsetPin = -1

// PinState is an inbound report of an input pin level.
type PinState struct {
	Number          int   `json:"number"`
	High            bool  `json:"high"`
	SinceLastChange int64 `json:"timeSinceLastChange"` // milliseconds
}

// Temperature is an inbound sensor reading in milli-degrees Celsius.
type Temperature struct {
	DeviceID     string `json:"deviceId"`
	MilliDegrees int64  `json:"temperature"`
}

// Celsius converts the raw reading to degrees.
func (t Temperature) Celsius() float64 {
	return float64(t.MilliDegrees) / 1000
}

// DecodePinState tries to read raw as a PinState. It reports false when the
// message is not JSON, does not fit the schema, or carries no pin number.
// It never returns an error: a miss is normal traffic.
func DecodePinState(raw []byte) (PinState, bool) {
	st := PinState{Number: UnsetPin}
	if err := json.Unmarshal(raw, &st); err != nil {
		return PinState{}, false
	}
	if st.Number < 0 {
		return PinState{}, false
	}
	return st, true
}

// DecodeTemperature tries to read raw as a Temperature reading. It reports
// false for anything without a device id.
func DecodeTemperature(raw []byte) (Temperature, bool) {
	var t Temperature
	if err := json.Unmarshal(raw, &t); err != nil {
		return Temperature{}, false
	}
	if t.DeviceID == "" {
		return Temperature{}, false
	}
	return t, true
}
