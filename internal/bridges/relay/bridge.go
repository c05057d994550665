package relay

import (
	"context"
	"fmt"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// Options holds what is needed to build a Bridge.
type Options struct {
	// Config is the bridge configuration.
	Config Config

	// Device is the relay hardware (or simulator).
	Device device.Driver

	// Transport is the bus client.
	Transport Transport

	// Logger is an optional structured logger.
	Logger Logger
}

// Bridge composes the routers and the session: device callbacks go to the
// event router, inbound bus messages go to the command router.
type Bridge struct {
	cfg      Config
	device   device.Driver
	session  *Session
	events   *EventRouter
	commands *CommandRouter
	logger   Logger
}

// NewBridge wires a bridge and registers it as the device's event sink.
// Call Run to start it.
func NewBridge(opts Options) (*Bridge, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	logger := orNop(opts.Logger)

	commands := NewCommandRouter(opts.Config, opts.Device, logger)
	session, err := NewSession(SessionOptions{
		Transport:     opts.Transport,
		Subscriptions: commands,
		Device:        opts.Device,
		QoS:           opts.Config.QoS,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	events := NewEventRouter(opts.Config, opts.Device, session, logger)
	opts.Device.SetEvents(events)

	return &Bridge{
		cfg:      opts.Config,
		device:   opts.Device,
		session:  session,
		events:   events,
		commands: commands,
		logger:   logger,
	}, nil
}

// Run connects to the bus and then drives the device loop until ctx is
// cancelled. An initial connection failure is returned immediately.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.session.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.session.Close(); err != nil {
			b.logger.Warn("closing session", "error", err)
		}
	}()

	for idx, flags := range b.cfg.Relays {
		b.logger.Debug("relay behaviour", "relay", idx, "flags", flags.String())
	}
	b.logger.Info("bridge running",
		"prefix", b.cfg.TopicPrefix,
		"subscriptions", len(b.commands.Topics()),
	)

	if err := b.device.Run(ctx); err != nil {
		return fmt.Errorf("device loop: %w", err)
	}
	b.logger.Info("bridge stopped")
	return nil
}

// Stats returns the session counters.
func (b *Bridge) Stats() SessionStats {
	return b.session.Stats()
}

// Snapshot returns the device's current state.
func (b *Bridge) Snapshot() device.Snapshot {
	return b.device.Snapshot()
}
