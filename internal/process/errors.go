package process

import "errors"

var (
	// ErrEmptyCommand is returned when a command has no binary.
	ErrEmptyCommand = errors.New("process: empty command")

	// ErrTimeout is returned when a command outlives its timeout and is killed.
	ErrTimeout = errors.New("process: command timed out")
)
