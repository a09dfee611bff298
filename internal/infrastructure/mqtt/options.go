package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gpio-remote-core/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the first connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds waiting for a publish or subscribe ack.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce lets in-flight acks finish on Close (ms).
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	// Reconnect backoff used when the config leaves it at zero.
	defaultReconnectInitial = 1 * time.Second
	defaultReconnectMax     = 60 * time.Second

	// statusQoS is used for the system status and the will, whatever the
	// configured QoS, so the offline marker is never lost.
	statusQoS = 1

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// clientIDFor returns the configured client ID, or one derived from the
// bridge ID so two runtimes on one broker do not kick each other off.
func clientIDFor(cfg config.MQTTConfig, bridgeID string) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return TopicPrefix + "-" + bridgeID
}

// buildClientOptions creates paho options for the bridge:
//   - tcp:// or ssl:// broker URL
//   - optional username/password
//   - clean session; subscriptions are restored by the client itself
//   - auto-reconnect with the configured backoff
//   - the offline will on the system status topic
func buildClientOptions(cfg config.MQTTConfig, bridgeID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	clientID := clientIDFor(cfg, bridgeID)
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	initial := time.Duration(cfg.Reconnect.InitialDelay) * time.Second
	if initial <= 0 {
		initial = defaultReconnectInitial
	}
	maxDelay := time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	if maxDelay < initial {
		maxDelay = defaultReconnectMax
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(initial)
	opts.SetMaxReconnectInterval(maxDelay)

	opts.SetBinaryWill(
		Topics{}.SystemStatus(),
		statusPayload(StatusOffline, ReasonConnectionLost, bridgeID, clientID),
		statusQoS,
		true,
	)

	return opts
}
