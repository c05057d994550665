package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnknownRelay) {
//	    // ignore commands for relays this hardware does not have
//	}
var (
	// ErrUnknownRelay is returned when a relay or button index is out of range.
	ErrUnknownRelay = errors.New("device: unknown relay")

	// ErrInvalidAction is returned when a button action name is not recognised.
	ErrInvalidAction = errors.New("device: invalid button action")

	// ErrInvalidCount is returned when a click count is not positive.
	ErrInvalidCount = errors.New("device: click count must be positive")

	// ErrStateNotFound is returned when no persisted state exists yet.
	ErrStateNotFound = errors.New("device: state not found")

	// ErrNotRunning is returned when input is injected into a stopped device loop.
	ErrNotRunning = errors.New("device: loop not running")
)
