package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Legacy relay flag bits, as written by the older ini-style configuration
// (relay_upper_flags / relay_lower_flags).
const (
	FlagToggle      = 1
	FlagSendClick   = 1 << 1
	FlagSendHeld    = 1 << 2
	FlagSendRelease = 1 << 3
)

// PhysicalRelays is the number of relay/button pairs on the device.
const PhysicalRelays = 2

// Config is the root configuration structure for the relay bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Probe    ProbeConfig    `yaml:"probe"`
	Device   DeviceConfig   `yaml:"device"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains the topic scheme and per-relay behaviour.
type BridgeConfig struct {
	// TopicPrefix is the first level of every topic the bridge uses.
	// Default: "Relay"
	TopicPrefix string `yaml:"topic_prefix"`

	// Relays maps a relay/button index to its behaviour.
	// Entries given in the file replace the default for that index only.
	Relays map[int]RelayBehaviour `yaml:"relays"`
}

// RelayBehaviour controls what a button does locally and what it forwards to the bus.
type RelayBehaviour struct {
	// Toggle flips the relay on a single click.
	Toggle bool `yaml:"toggle"`

	// SendClick publishes click events.
	SendClick bool `yaml:"send_click"`

	// SendHeld publishes held events.
	SendHeld bool `yaml:"send_held"`

	// SendRelease publishes released events.
	SendRelease bool `yaml:"send_release"`

	// Flags is the legacy integer bitmask. When set it is OR-ed into the booleans.
	Flags *int `yaml:"flags,omitempty"`
}

// Bits returns the behaviour as a legacy bitmask.
func (r RelayBehaviour) Bits() int {
	bits := 0
	if r.Flags != nil {
		bits = *r.Flags
	}
	if r.Toggle {
		bits |= FlagToggle
	}
	if r.SendClick {
		bits |= FlagSendClick
	}
	if r.SendHeld {
		bits |= FlagSendHeld
	}
	if r.SendRelease {
		bits |= FlagSendRelease
	}
	return bits
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	// Address is the broker URL, e.g. "tcp://192.168.1.10:1883".
	Address string `yaml:"address"`

	// ClientID identifies the bridge to the broker.
	// Default: "Relay"
	ClientID string `yaml:"client_id"`

	Auth MQTTAuthConfig `yaml:"auth"`

	// QoS used for subscriptions and publications (0, 1 or 2).
	QoS int `yaml:"qos"`

	// KeepAlive in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// ConnectTimeout bounds the initial connection attempt (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// MaxDelay caps the transport's reconnect backoff (seconds).
	MaxDelay int `yaml:"max_delay"`
}

// ProbeConfig configures the pre-flight reachability check.
type ProbeConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	// Count is the number of attempts. Zero disables the probe.
	Count int `yaml:"count"`

	// Wait is the pause between attempts (seconds).
	Wait int `yaml:"wait"`
}

// DeviceConfig contains device driver settings.
type DeviceConfig struct {
	// Driver selects the device implementation. Only "sim" is built in.
	Driver string `yaml:"driver"`

	// ScreenTimeout turns the screen off after this many seconds (0 = never).
	ScreenTimeout int `yaml:"screen_timeout"`

	// ProximityThreshold is the reading above which the screen wakes.
	ProximityThreshold float64 `yaml:"proximity_threshold"`

	// SensorInterval is how often sensors are sampled (seconds).
	SensorInterval int `yaml:"sensor_interval"`

	// StartupCommands are run once, in order, before the device loop starts.
	// Each entry is an argv list, e.g. ["service", "call", "activity", "42", "s16", "com.android.systemui"].
	StartupCommands [][]string `yaml:"startup_commands"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: RELAYBRIDGE_SECTION_KEY
// For example: RELAYBRIDGE_MQTT_ADDRESS, RELAYBRIDGE_TOPIC_PREFIX
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data over the defaults, applies
// environment overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// The MQTT address has no default and must be provided.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			TopicPrefix: "Relay",
			Relays: map[int]RelayBehaviour{
				0: {SendClick: true, SendHeld: true},
				1: {SendClick: true, SendHeld: true},
			},
		},
		MQTT: MQTTConfig{
			ClientID:       "Relay",
			QoS:            0,
			KeepAlive:      10,
			ConnectTimeout: 10,
			Reconnect: MQTTReconnectConfig{
				MaxDelay: 60,
			},
		},
		Probe: ProbeConfig{
			Port: 80,
			Wait: 5,
		},
		Device: DeviceConfig{
			Driver:             "sim",
			ScreenTimeout:      10,
			ProximityThreshold: 5000,
			SensorInterval:     60,
		},
		Database: DatabaseConfig{
			Path:        "./data/relaybridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAYBRIDGE_TOPIC_PREFIX"); v != "" {
		cfg.Bridge.TopicPrefix = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_ADDRESS"); v != "" {
		cfg.MQTT.Address = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RELAYBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("RELAYBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	// Bridge
	if c.Bridge.TopicPrefix == "" {
		errs = append(errs, "bridge.topic_prefix is required")
	} else if strings.ContainsAny(c.Bridge.TopicPrefix, "+#") {
		errs = append(errs, "bridge.topic_prefix must not contain MQTT wildcards")
	}
	if len(c.Bridge.Relays) != PhysicalRelays {
		errs = append(errs, fmt.Sprintf("bridge.relays must have exactly %d entries, got %d", PhysicalRelays, len(c.Bridge.Relays)))
	}
	for _, idx := range c.RelayIndexes() {
		if idx < 0 || idx >= PhysicalRelays {
			errs = append(errs, fmt.Sprintf("bridge.relays[%d]: index must be between 0 and %d", idx, PhysicalRelays-1))
			continue
		}
		if f := c.Bridge.Relays[idx].Flags; f != nil && (*f < 0 || *f > FlagToggle|FlagSendClick|FlagSendHeld|FlagSendRelease) {
			errs = append(errs, fmt.Sprintf("bridge.relays[%d].flags must be between 0 and 15", idx))
		}
	}

	// MQTT
	if c.MQTT.Address == "" {
		errs = append(errs, "mqtt.address is required (set RELAYBRIDGE_MQTT_ADDRESS environment variable)")
	}
	if c.MQTT.ClientID == "" {
		errs = append(errs, "mqtt.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive <= 0 {
		errs = append(errs, "mqtt.keep_alive must be positive")
	}
	if c.MQTT.ConnectTimeout <= 0 {
		errs = append(errs, "mqtt.connect_timeout must be positive")
	}

	// Probe
	if c.Probe.Count < 0 {
		errs = append(errs, "probe.count cannot be negative")
	}
	if c.Probe.Count > 0 && c.Probe.Address == "" {
		errs = append(errs, "probe.address is required when probe.count > 0")
	}
	if c.Probe.Port < 0 || c.Probe.Port > 65535 {
		errs = append(errs, "probe.port must be between 0 and 65535")
	}
	if c.Probe.Wait < 0 {
		errs = append(errs, "probe.wait cannot be negative")
	}

	// Device
	if c.Device.Driver != "sim" {
		errs = append(errs, fmt.Sprintf("device.driver %q is not supported (want \"sim\")", c.Device.Driver))
	}
	if c.Device.ScreenTimeout < 0 {
		errs = append(errs, "device.screen_timeout cannot be negative")
	}
	if c.Device.SensorInterval <= 0 {
		errs = append(errs, "device.sensor_interval must be positive")
	}
	for i, argv := range c.Device.StartupCommands {
		if len(argv) == 0 || argv[0] == "" {
			errs = append(errs, fmt.Sprintf("device.startup_commands[%d] is empty", i))
		}
	}

	// Database
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RelayIndexes returns the configured relay indexes in ascending order.
func (c *Config) RelayIndexes() []int {
	idx := make([]int, 0, len(c.Bridge.Relays))
	for i := range c.Bridge.Relays {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// GetKeepAlive returns the MQTT keepalive as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// GetConnectTimeout returns the initial MQTT connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Second
}

// GetProbeWait returns the pause between probe attempts as a Duration.
func (c *Config) GetProbeWait() time.Duration {
	return time.Duration(c.Probe.Wait) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
