package mqtt

import (
	"fmt"
)

// maxPayloadSize caps a single message. Device events and state updates
// are a few hundred bytes; anything near this is a bug upstream.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker's ack (QoS 1/2)
// or for the write (QoS 0), up to defaultPublishTimeout.
//
// The bridge publishes state and health retained and acks not retained.
// Nothing is queued while disconnected: the call fails with
// ErrNotConnected and the caller drops or logs it.
//
// Parameters:
//   - topic: Full topic, e.g. Topics{}.State("porch_light")
//   - payload: Message body, at most 1 MiB
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps it for late subscribers
//
// Returns:
//   - error: nil on success, or one of the package errors wrapped with detail
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
