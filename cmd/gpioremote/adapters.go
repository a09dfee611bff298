package main

import (
	"github.com/nerrad567/gpio-remote-core/internal/bridges/gpio"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/mqtt"
)

// mqttBridgeAdapter adapts the infrastructure MQTT client to the handler
// signature the bridge and API use:
//   - infrastructure mqtt: func(topic string, payload []byte) error
//   - bridge and API:      func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements gpio.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements gpio.MQTTClient and api.StateSource.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements gpio.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// pointWriter is the part of the InfluxDB client the recorder uses.
type pointWriter interface {
	WritePinState(item, endpoint string, pin int, high bool, sinceLastChangeMs int64)
	WriteTemperature(item, endpoint, deviceID string, celsius float64)
}

var _ pointWriter = (*influxdb.Client)(nil)

// influxRecorder writes routed readings to InfluxDB. It implements
// gpio.ReadingRecorder.
type influxRecorder struct {
	client pointWriter
}

func (r influxRecorder) RecordPinState(item string, ep gpio.Endpoint, st gpio.PinState) {
	r.client.WritePinState(item, string(ep), st.Number, st.High, st.SinceLastChange)
}

func (r influxRecorder) RecordTemperature(item string, ep gpio.Endpoint, t gpio.Temperature) {
	r.client.WriteTemperature(item, string(ep), t.DeviceID, t.Celsius())
}
