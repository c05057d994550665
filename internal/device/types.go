package device

import "context"

// RelayCount is the number of relay/button pairs on the device.
const RelayCount = 2

// Events receives hardware-originated callbacks.
//
// Implementations are called from the driver's own goroutine and must not
// block; they may run concurrently with bus callbacks.
type Events interface {
	// ButtonClicked reports a completed click sequence of count presses.
	ButtonClicked(button, count int)

	// ButtonHeld reports a button held down after count presses.
	ButtonHeld(button, count int)

	// ButtonReleased reports a held button being released.
	ButtonReleased(button, count int)

	// RelayStateChanged reports the current state of a relay.
	RelayStateChanged(relay int, on bool)

	// TemperatureChanged reports a temperature reading in degrees Celsius.
	TemperatureChanged(celsius float64)

	// HumidityChanged reports a relative humidity reading in percent.
	HumidityChanged(percent float64)

	// ProximityTriggered reports a raw proximity sensor reading.
	ProximityTriggered(value float64)
}

// Commander is the set of commands the bridge issues to the device.
type Commander interface {
	// SetRelay switches a relay on or off.
	SetRelay(relay int, on bool) error

	// ToggleRelay inverts a relay's current state.
	ToggleRelay(relay int) error

	// SetScreen powers the display on or off.
	SetScreen(on bool) error

	// ResetState forgets what has been reported so the next loop iteration
	// re-emits every relay state and sensor reading.
	ResetState()
}

// Driver is a complete device implementation.
type Driver interface {
	Commander

	// SetEvents registers the callback sink. Must be called before Run.
	SetEvents(events Events)

	// Run drives the device loop until ctx is cancelled.
	Run(ctx context.Context) error

	// Snapshot returns the current device state.
	Snapshot() Snapshot
}

// Injector is implemented by drivers that accept synthetic input.
// The simulated device implements it so buttons can be pressed over HTTP.
type Injector interface {
	PressButton(button int, action Action, count int) error
	InjectProximity(value float64)
}

// Action identifies a button event kind.
type Action string

// Button actions.
const (
	ActionClick    Action = "click"
	ActionHeld     Action = "held"
	ActionReleased Action = "released"
)

// ParseAction converts a string to an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionClick, ActionHeld, ActionReleased:
		return a, nil
	default:
		return "", ErrInvalidAction
	}
}

// Snapshot is the externally visible device state.
type Snapshot struct {
	Relays      [RelayCount]bool `json:"relays"`
	Screen      bool             `json:"screen"`
	Temperature float64          `json:"temperature"`
	Humidity    float64          `json:"humidity"`
}

// ValidRelay reports whether relay addresses a physical relay.
func ValidRelay(relay int) bool {
	return relay >= 0 && relay < RelayCount
}
