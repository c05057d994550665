package relay

import "errors"

// Domain errors for the relay bridge package.
var (
	// ErrInvalidPayload is returned when an inbound payload is not a
	// recognised boolean spelling.
	ErrInvalidPayload = errors.New("relay: invalid payload")

	// ErrInvalidConfig is returned when the bridge configuration is incomplete.
	ErrInvalidConfig = errors.New("relay: invalid configuration")

	// ErrConnectFailed is returned when the initial bus connection fails.
	ErrConnectFailed = errors.New("relay: initial connection failed")

	// ErrAlreadyStarted is returned when Connect is called more than once.
	ErrAlreadyStarted = errors.New("relay: session already started")
)
