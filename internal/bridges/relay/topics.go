package relay

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// Relative topic paths under the configured prefix.
const (
	pathButtons = "buttons"
	pathRelays  = "relays"
	pathSensors = "sensors"
	pathScreen  = "screen"
	pathState   = "state"
	pathStatus  = "status"
)

// SensorKind names an environmental sensor topic.
type SensorKind string

// Sensor kinds.
const (
	SensorTemperature SensorKind = "temperature"
	SensorHumidity    SensorKind = "humidity"
)

// Payload literals.
const (
	payloadOn  = "ON"
	payloadOff = "OFF"
)

// ButtonTopic returns <prefix>/buttons/<idx>/<action>/<count>.
func ButtonTopic(prefix string, button int, action device.Action, count int) string {
	return fmt.Sprintf("%s/%s/%d/%s/%d", prefix, pathButtons, button, action, count)
}

// RelayStateTopic returns <prefix>/relays/<idx>/state.
func RelayStateTopic(prefix string, relay int) string {
	return fmt.Sprintf("%s/%s/%d/%s", prefix, pathRelays, relay, pathState)
}

// SensorTopic returns <prefix>/sensors/<kind>.
func SensorTopic(prefix string, kind SensorKind) string {
	return prefix + "/" + pathSensors + "/" + string(kind)
}

// RelayCommandTopic returns <prefix>/relays/<idx>, the inbound relay command topic.
func RelayCommandTopic(prefix string, relay int) string {
	return prefix + "/" + pathRelays + "/" + strconv.Itoa(relay)
}

// ScreenTopic returns <prefix>/screen, the inbound screen power topic.
func ScreenTopic(prefix string) string {
	return prefix + "/" + pathScreen
}

// StatusTopic returns <prefix>/status, carrying the bridge's online/offline
// availability and used as the Last Will topic.
func StatusTopic(prefix string) string {
	return prefix + "/" + pathStatus
}

// EncodeBool returns "ON" or "OFF".
func EncodeBool(on bool) []byte {
	if on {
		return []byte(payloadOn)
	}
	return []byte(payloadOff)
}

// DecodeBool parses an inbound boolean payload.
//
// Accepted spellings are ON, OFF, 1 and 0, case-insensitive, with
// surrounding whitespace ignored. Anything else returns ErrInvalidPayload.
func DecodeBool(payload []byte) (bool, error) {
	p := bytes.TrimSpace(payload)
	switch {
	case bytes.EqualFold(p, []byte(payloadOn)), string(p) == "1":
		return true, nil
	case bytes.EqualFold(p, []byte(payloadOff)), string(p) == "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
}

// EncodeReading formats a sensor value as fixed-point decimal text with six
// fractional digits, independent of locale.
func EncodeReading(v float64) []byte {
	return strconv.AppendFloat(nil, v, 'f', 6, 64)
}
