package mqtt

import (
	"encoding/json"
	"time"
)

// Values of StatusMessage.Status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Values of StatusMessage.Reason for an offline status.
const (
	// ReasonShutdown is published by Close.
	ReasonShutdown = "shutdown"

	// ReasonConnectionLost is the will, published by the broker when the
	// runtime disappears without closing.
	ReasonConnectionLost = "connection_lost"
)

// StatusMessage is the retained payload on Topics.SystemStatus.
//
// Controllers watch it to tell a stopped runtime (reason "shutdown") from
// a crashed or partitioned one (reason "connection_lost"). Per-device
// connectivity is reported separately on the health topic.
type StatusMessage struct {
	Status    string    `json:"status"`
	Bridge    string    `json:"bridge"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// statusPayload encodes a StatusMessage stamped with the current time.
func statusPayload(status, reason, bridgeID, clientID string) []byte {
	msg := StatusMessage{
		Status:    status,
		Bridge:    bridgeID,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	// Only strings and a time; Marshal cannot fail.
	data, _ := json.Marshal(msg) //nolint:errcheck // see above
	return data
}
