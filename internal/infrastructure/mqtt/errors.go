package mqtt

import "errors"

// Errors returned by the bus client. Check with errors.Is.
var (
	// ErrNotConnected means the broker link is down; publishes and
	// subscriptions are refused rather than queued.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the first connection to the broker did not
	// complete. Later drops are handled by auto-reconnect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps broker-side or timeout failures on publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps broker-side or timeout failures on subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrPayloadTooLarge is returned for payloads over maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
