package relay

import (
	"sort"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// command applies a decoded boolean to the device.
type command struct {
	name  string
	apply func(on bool) error
}

// CommandRouter dispatches inbound bus messages to device commands by exact
// topic match. The table is built once and never modified.
type CommandRouter struct {
	routes map[string]command
	topics []string
	logger Logger
}

// NewCommandRouter builds the subscription table: one relay topic per
// configured relay plus the screen topic.
func NewCommandRouter(cfg Config, dev device.Commander, logger Logger) *CommandRouter {
	routes := make(map[string]command, len(cfg.Relays)+1)
	for _, idx := range cfg.relayIndexes() {
		relay := idx
		routes[RelayCommandTopic(cfg.TopicPrefix, relay)] = command{
			name:  "set_relay",
			apply: func(on bool) error { return dev.SetRelay(relay, on) },
		}
	}
	routes[ScreenTopic(cfg.TopicPrefix)] = command{
		name:  "set_screen",
		apply: dev.SetScreen,
	}

	topics := make([]string, 0, len(routes))
	for t := range routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	return &CommandRouter{
		routes: routes,
		topics: topics,
		logger: orNop(logger),
	}
}

// Topics returns every subscribed topic in sorted order. The caller must
// not modify the slice.
func (r *CommandRouter) Topics() []string {
	return r.topics
}

// Dispatch decodes payload and applies the command registered for topic.
// Unknown topics are ignored. Undecodable payloads are logged and dropped
// without touching the device.
func (r *CommandRouter) Dispatch(topic string, payload []byte) {
	cmd, ok := r.routes[topic]
	if !ok {
		r.logger.Debug("ignoring message on unhandled topic", "topic", topic)
		return
	}

	on, err := DecodeBool(payload)
	if err != nil {
		r.logger.Warn("dropping command with invalid payload",
			"topic", topic,
			"payload", string(payload),
		)
		return
	}

	if err := cmd.apply(on); err != nil {
		r.logger.Error("device command failed",
			"command", cmd.name,
			"topic", topic,
			"error", err,
		)
		return
	}
	r.logger.Debug("command applied", "command", cmd.name, "topic", topic, "on", on)
}
