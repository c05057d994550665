package mqtt

import (
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout applies when the config leaves it unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultKeepAlive applies when the config leaves it unset.
	defaultKeepAlive = 10 * time.Second

	// defaultMaxReconnectInterval caps reconnect backoff when unset.
	defaultMaxReconnectInterval = time.Minute

	// subscribeTimeout bounds the wait for a SUBACK.
	subscribeTimeout = 5 * time.Second

	// statusPublishTimeout bounds the offline publish on Close.
	statusPublishTimeout = 2 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on disconnect (ms).
	disconnectQuiesce = 500

	maxQoS = 2

	// Availability payloads on the status topic.
	statusOnline  = "online"
	statusOffline = "offline"
)

// brokerURL adds the tcp:// scheme to a bare host:port address.
func brokerURL(address string) string {
	if strings.Contains(address, "://") {
		return address
	}
	return "tcp://" + address
}

// buildClientOptions creates paho options from the bridge config.
//
// The session is clean and paho reconnects on its own after the first
// successful connection. Connect retry is off: a failed initial connect is
// reported to the caller instead of being retried in the background.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg.Address))
	opts.SetClientID(cfg.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetResumeSubs(false)

	opts.SetKeepAlive(secondsOr(cfg.KeepAlive, defaultKeepAlive))
	opts.SetConnectTimeout(secondsOr(cfg.ConnectTimeout, defaultConnectTimeout))
	opts.SetMaxReconnectInterval(secondsOr(cfg.Reconnect.MaxDelay, defaultMaxReconnectInterval))

	return opts
}

// configureLWT makes the broker publish "offline" on the status topic,
// retained, if the bridge disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, statusTopic string, qos byte) {
	if statusTopic == "" {
		return
	}
	opts.SetWill(statusTopic, statusOffline, qos, true)
}

func secondsOr(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}
