// Package gpio drives remote GPIO device servers from an MQTT command bus.
//
// Each device server exposes pins and temperature sensors over a
// WebSocket. Items are bound to one pin or sensor on one server; many
// items usually share a server, and the bridge keeps exactly one
// connection per server.
//
// # Architecture
//
//	┌──────────────┐  command/<item>  ┌──────────────────────────────┐  ws://host:port
//	│  Automation  │ ───────────────► │ Translate ─► Manager.Send    │ ───────────────►  device
//	│     host     │ ◄─────────────── │ Router ◄──── inbound frames  │ ◄───────────────  server
//	└──────────────┘   state/<item>   └──────────────────────────────┘
//
// # Key Responsibilities
//
//   - Manager: one Conn per Endpoint, reconciled on a fixed period. Idle
//     endpoints are pruned; anything not open is closed and replaced.
//   - Translate: raw command (bool, token, integer) to a PinEvent for an
//     output pin, updating the pin's cached duty.
//   - Router: speculative PinState/Temperature decode, first-match
//     resolution over the Registry, cache update, PublishUpdate.
//
// # Binding strings
//
//	<host:port>;<pinOrDeviceId>;<out|in|temperature>
//
// The mode defaults to out when omitted.
//
// # Command tokens
//
//	on, off, toggle, increase, decrease
//	dim_<pwm>
//	fade_<durationMs>_<start>_<end>[_<repeat>_<cycles>_<pauseMs>]
//	fadeupdown_<durationMs>_<start>_<end>[_<repeat>_<cycles>_<pauseMs>]
//	blink_<upMs>[_<downMs>_<pwm>_<repeat>_<cycles>]
//	<pwm>
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package gpio
