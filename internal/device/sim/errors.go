package sim

import "errors"

var (
	// ErrNoEvents is returned by Run when SetEvents has not been called.
	ErrNoEvents = errors.New("sim: events sink not set")

	// ErrAlreadyRunning is returned when Run is called on a running simulator.
	ErrAlreadyRunning = errors.New("sim: already running")
)
