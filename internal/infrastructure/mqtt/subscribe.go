package mqtt

import (
	"fmt"
)

// subscription is kept so it can be replayed after a reconnect; the
// session is clean, so the broker forgets it.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Subscribe registers handler for topic (wildcards allowed) and waits for
// the broker's ack.
//
// The subscription is remembered and replayed, in registration order, on
// every reconnect. The bridge subscribes to its command topic before the
// API subscribes to state, so commands are flowing again first.
// Subscribing to a topic a second time replaces its handler.
//
// Handlers run on paho's delivery goroutine; a panic is recovered and
// logged, and a returned error is logged at warn.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrSubscribeFailed wrapping the broker's answer
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	c.remember(subscription{topic: topic, qos: qos, handler: handler})
	return nil
}

func (c *Client) remember(sub subscription) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for i := range c.subs {
		if c.subs[i].topic == sub.topic {
			c.subs[i] = sub
			return
		}
	}
	c.subs = append(c.subs, sub)
}

// restoreSubscriptions replays every remembered subscription. Failures
// are logged and skipped; the next reconnect tries again.
func (c *Client) restoreSubscriptions() int {
	c.subMu.Lock()
	subs := append([]subscription(nil), c.subs...)
	c.subMu.Unlock()

	restored := 0
	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if !token.WaitTimeout(defaultPublishTimeout) {
			c.logWarn("MQTT resubscribe timed out", "topic", sub.topic)
			continue
		}
		if err := token.Error(); err != nil {
			c.logWarn("MQTT resubscribe failed", "topic", sub.topic, "error", err)
			continue
		}
		restored++
	}
	return restored
}
