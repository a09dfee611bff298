package gpio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MQTT message types exchanged between the bridge and the automation host.

// CommandMessage is received on gpioremote/command/{item}.
//
// The payload may also be a bare token ("ON", "dim_40", "75"), in which
// case only Command is populated.
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Optional.
	ID string `json:"id,omitempty"`

	// Command is a bool, a string token or a number.
	Command any `json:"command"`

	// Source names the originator ("mqtt", "api", "automation").
	Source string `json:"source,omitempty"`
}

// ParseCommandPayload decodes an MQTT command payload. JSON objects are
// read as CommandMessage; any other JSON scalar or plain text becomes the
// command itself. Numbers are kept as json.Number.
func ParseCommandPayload(payload []byte) (CommandMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return CommandMessage{}, fmt.Errorf("empty command payload")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '{' {
		var cmd CommandMessage
		if err := dec.Decode(&cmd); err != nil {
			return CommandMessage{}, fmt.Errorf("parse command: %w", err)
		}
		if cmd.Command == nil {
			return CommandMessage{}, fmt.Errorf("parse command: missing command field")
		}
		return cmd, nil
	}

	var scalar any
	if err := dec.Decode(&scalar); err == nil && scalar != nil && !dec.More() {
		switch scalar.(type) {
		case bool, string, json.Number:
			return CommandMessage{Command: scalar}, nil
		}
	}
	return CommandMessage{Command: string(trimmed)}, nil
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted means the event was written to the device connection.
	// The device itself does not confirm.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was rejected or could not be sent.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on gpioremote/ack/{item}.
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Item      string    `json:"item"`
	Status    AckStatus `json:"status"`
	Endpoint  Endpoint  `json:"endpoint,omitempty"`
	Event     EventKind `json:"event,omitempty"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage builds an accepted acknowledgement.
func NewAckMessage(cmd CommandMessage, item string, ep Endpoint, ev PinEvent) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Item:      item,
		Status:    AckAccepted,
		Endpoint:  ep,
	}
	if ev != nil {
		ack.Event = ev.Kind()
	}
	return ack
}

// NewAckError builds a failed acknowledgement from a pipeline error.
func NewAckError(cmd CommandMessage, item string, ep Endpoint, err error) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Item:      item,
		Status:    AckFailed,
		Endpoint:  ep,
		Error: &AckError{
			Code:    ErrorCode(err),
			Message: err.Error(),
		},
	}
}

// StateMessage is published retained on gpioremote/state/{item}.
type StateMessage struct {
	Item      string    `json:"item"`
	Value     any       `json:"value"`
	Type      StateKind `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateMessage builds a state message for an item.
func NewStateMessage(item string, v StateValue) StateMessage {
	return StateMessage{
		Item:      item,
		Value:     v.Value(),
		Type:      v.Kind,
		Timestamp: time.Now().UTC(),
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on gpioremote/health/{bridge_id}.
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connections   *ConnectionCounts `json:"connections,omitempty"`
	ItemsManaged  int               `json:"items_managed"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionCounts summarises the connection table by state.
type ConnectionCounts struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	Connecting int `json:"connecting"`
	Closed     int `json:"closed"`
	Faulted    int `json:"faulted"`
}

// CountConnections tallies a connection snapshot by state.
func CountConnections(conns []ConnectionStatus) ConnectionCounts {
	c := ConnectionCounts{Total: len(conns)}
	for _, s := range conns {
		switch s.State {
		case StateOpen:
			c.Open++
		case StateConnecting:
			c.Connecting++
		case StateClosed:
			c.Closed++
		case StateFaulted:
			c.Faulted++
		}
	}
	return c
}
