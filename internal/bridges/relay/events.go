package relay

import (
	"github.com/nerrad567/relay-bridge/internal/device"
)

// Publisher sends one message to the bus. Implementations must not block
// and must not fail loudly: publishing is best-effort.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool)
}

// EventRouter turns device callbacks into bus publications.
//
// Button events are transient and published non-retained. Relay state and
// sensor readings are durable and always published retained, so that a
// subscriber arriving later sees the last known value.
type EventRouter struct {
	prefix string
	flags  map[int]Flags
	device device.Commander
	pub    Publisher
	logger Logger
}

// NewEventRouter creates a router for cfg. dev receives toggle commands and
// pub receives publications.
func NewEventRouter(cfg Config, dev device.Commander, pub Publisher, logger Logger) *EventRouter {
	return &EventRouter{
		prefix: cfg.TopicPrefix,
		flags:  cfg.Relays,
		device: dev,
		pub:    pub,
		logger: orNop(logger),
	}
}

// ButtonClicked toggles the relay on a single click when configured, then
// publishes the click. The toggle is issued first so the relay state
// callback it triggers carries the new state.
func (r *EventRouter) ButtonClicked(button, count int) {
	flags, ok := r.buttonFlags(button)
	if !ok {
		return
	}

	if flags.Has(FlagToggle) && count == 1 {
		if err := r.device.ToggleRelay(button); err != nil {
			r.logger.Error("toggle relay failed", "relay", button, "error", err)
		}
	}
	if flags.Has(FlagSendClick) {
		r.publishButton(button, device.ActionClick, count)
	}
}

// ButtonHeld publishes a held event when configured.
func (r *EventRouter) ButtonHeld(button, count int) {
	if flags, ok := r.buttonFlags(button); ok && flags.Has(FlagSendHeld) {
		r.publishButton(button, device.ActionHeld, count)
	}
}

// ButtonReleased publishes a released event when configured.
func (r *EventRouter) ButtonReleased(button, count int) {
	if flags, ok := r.buttonFlags(button); ok && flags.Has(FlagSendRelease) {
		r.publishButton(button, device.ActionReleased, count)
	}
}

// RelayStateChanged publishes the relay state, retained.
func (r *EventRouter) RelayStateChanged(relay int, on bool) {
	r.pub.Publish(RelayStateTopic(r.prefix, relay), EncodeBool(on), true)
}

// TemperatureChanged publishes the temperature, retained.
func (r *EventRouter) TemperatureChanged(celsius float64) {
	r.pub.Publish(SensorTopic(r.prefix, SensorTemperature), EncodeReading(celsius), true)
}

// HumidityChanged publishes the humidity, retained.
func (r *EventRouter) HumidityChanged(percent float64) {
	r.pub.Publish(SensorTopic(r.prefix, SensorHumidity), EncodeReading(percent), true)
}

// ProximityTriggered has no bus effect.
func (r *EventRouter) ProximityTriggered(value float64) {
	r.logger.Debug("proximity", "value", value)
}

func (r *EventRouter) buttonFlags(button int) (Flags, bool) {
	flags, ok := r.flags[button]
	if !ok {
		r.logger.Warn("event for unconfigured button ignored", "button", button)
	}
	return flags, ok
}

func (r *EventRouter) publishButton(button int, action device.Action, count int) {
	r.pub.Publish(ButtonTopic(r.prefix, button, action, count), []byte(payloadOn), false)
}

var _ device.Events = (*EventRouter)(nil)
