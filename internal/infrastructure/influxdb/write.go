package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package. Every point also carries
// the bridge tag.
const (
	MeasurementPinState    = "pin_state"
	MeasurementTemperature = "temperature"
	MeasurementItemsReload = "items_reload"
)

// WritePinState records an input pin reading.
//
// Parameters:
//   - item: Item identity the reading resolved to
//   - endpoint: host:port of the device that sent it
//   - pin: GPIO pin number
//   - high: Current pin level
//   - sinceLastChangeMs: Milliseconds since the level last changed, as reported
func (c *Client) WritePinState(item, endpoint string, pin int, high bool, sinceLastChangeMs int64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(pinStatePoint(item, endpoint, pin, high, sinceLastChangeMs, time.Now()))
}

// WriteTemperature records a temperature reading in degrees Celsius.
func (c *Client) WriteTemperature(item, endpoint, deviceID string, celsius float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(temperaturePoint(item, endpoint, deviceID, celsius, time.Now()))
}

// WriteItemsReload records a successful items file reload with the
// resulting item and endpoint counts.
func (c *Client) WriteItemsReload(items, endpoints int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(itemsReloadPoint(items, endpoints, time.Now()))
}

func pinStatePoint(item, endpoint string, pin int, high bool, sinceLastChangeMs int64, ts time.Time) *write.Point {
	level := 0
	if high {
		level = 1
	}
	return write.NewPoint(
		MeasurementPinState,
		map[string]string{
			"item":     item,
			"endpoint": endpoint,
		},
		map[string]interface{}{
			"pin":                  pin,
			"high":                 high,
			"level":                level,
			"since_last_change_ms": sinceLastChangeMs,
		},
		ts,
	)
}

func temperaturePoint(item, endpoint, deviceID string, celsius float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementTemperature,
		map[string]string{
			"item":      item,
			"endpoint":  endpoint,
			"device_id": deviceID,
		},
		map[string]interface{}{
			"celsius": celsius,
		},
		ts,
	)
}

func itemsReloadPoint(items, endpoints int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementItemsReload,
		nil,
		map[string]interface{}{
			"items":     items,
			"endpoints": endpoints,
		},
		ts,
	)
}
