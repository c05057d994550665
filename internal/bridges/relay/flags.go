package relay

import "strings"

// Flags controls what a button does locally and which of its events are
// forwarded to the bus.
type Flags uint8

// Behaviour bits. The values match the legacy relay_*_flags integers.
const (
	FlagToggle Flags = 1 << iota
	FlagSendClick
	FlagSendHeld
	FlagSendRelease
)

// flagAll is every defined bit.
const flagAll = FlagToggle | FlagSendClick | FlagSendHeld | FlagSendRelease

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagToggle, "toggle"},
	{FlagSendClick, "send_click"},
	{FlagSendHeld, "send_held"},
	{FlagSendRelease, "send_release"},
}

// FlagsFromBits converts a legacy bitmask, discarding undefined bits.
func FlagsFromBits(bits int) Flags {
	return Flags(bits) & flagAll
}

// Has reports whether every bit in flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// String renders the set as "toggle|send_click", or "none".
func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
