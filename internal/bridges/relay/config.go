package relay

import (
	"fmt"
	"sort"

	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
)

// Config is the bridge's view of the configuration. It is read-only once
// the bridge is built.
type Config struct {
	// TopicPrefix is the first level of every topic.
	TopicPrefix string

	// Relays maps a relay/button index to its behaviour.
	Relays map[int]Flags

	// QoS for subscriptions and publications.
	QoS byte
}

// ConfigFrom extracts the bridge settings from the loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	relays := make(map[int]Flags, len(cfg.Bridge.Relays))
	for idx, behaviour := range cfg.Bridge.Relays {
		relays[idx] = FlagsFromBits(behaviour.Bits())
	}
	return Config{
		TopicPrefix: cfg.Bridge.TopicPrefix,
		Relays:      relays,
		QoS:         byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
	}
}

// Validate checks that there is one flag set per physical relay.
func (c Config) Validate() error {
	if c.TopicPrefix == "" {
		return fmt.Errorf("%w: topic prefix is required", ErrInvalidConfig)
	}
	if len(c.Relays) != device.RelayCount {
		return fmt.Errorf("%w: want %d relay entries, got %d", ErrInvalidConfig, device.RelayCount, len(c.Relays))
	}
	for idx := range c.Relays {
		if !device.ValidRelay(idx) {
			return fmt.Errorf("%w: relay index %d out of range", ErrInvalidConfig, idx)
		}
	}
	if c.QoS > 2 {
		return fmt.Errorf("%w: qos %d", ErrInvalidConfig, c.QoS)
	}
	return nil
}

// relayIndexes returns the configured indexes in ascending order.
func (c Config) relayIndexes() []int {
	idx := make([]int, 0, len(c.Relays))
	for i := range c.Relays {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
