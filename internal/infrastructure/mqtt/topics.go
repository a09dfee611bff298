package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic this runtime publishes or consumes.
//
// Layout: gpioremote/{category}/{item}
const TopicPrefix = "gpioremote"

// Topics provides builders for the runtime's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("garden-light") // "gpioremote/state/garden-light"
type Topics struct{}

// Command returns the topic a controller publishes raw commands to.
//
// Example: gpioremote/command/garden-light
func (Topics) Command(item string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, item)
}

// State returns the retained topic carrying an item's normalised value.
//
// Example: gpioremote/state/doorbell
func (Topics) State(item string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, item)
}

// Ack returns the topic for command acknowledgements.
//
// Example: gpioremote/ack/garden-light
func (Topics) Ack(item string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, item)
}

// Health returns the retained topic for a bridge's health report.
//
// Example: gpioremote/health/garage-pi
func (Topics) Health(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, bridgeID)
}

// SystemStatus returns the retained online/offline status topic (also the LWT topic).
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllCommands matches every item's command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllStates matches every item's state topic.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// ItemFromTopic extracts the item identity from a command, state or ack topic.
// It returns false if the topic is not of the form gpioremote/{category}/{item}.
func ItemFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
