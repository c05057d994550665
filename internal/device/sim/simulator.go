package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/relay-bridge/internal/device"
)

const (
	// queueSize bounds pending button and proximity callbacks. Injection
	// never blocks on a full queue; the event is dropped and logged instead.
	// Relay and sensor state is not queued and cannot be dropped.
	queueSize = 64

	// persistTimeout bounds a single state write.
	persistTimeout = 2 * time.Second

	// screenCheckInterval is how often the screen timeout is evaluated.
	screenCheckInterval = time.Second

	initialTemperature = 21.0
	initialHumidity    = 45.0

	temperatureStep = 0.2
	humidityStep    = 1.0
)

// Logger is the subset of the bridge logger the simulator uses.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Simulator.
type Options struct {
	// ScreenTimeout turns the screen off after this much inactivity. Zero disables it.
	ScreenTimeout time.Duration

	// ProximityThreshold is the reading above which the screen wakes.
	ProximityThreshold float64

	// SensorInterval is how often temperature and humidity drift. Zero disables drift.
	SensorInterval time.Duration

	// Repository persists relay and screen state. Optional.
	Repository device.StateRepository

	// Logger for diagnostics. Optional.
	Logger Logger
}

// Simulator is an in-process device.Driver.
//
// Commands mutate state immediately and mark what changed. Run reports
// changed relays from its own goroutine, reading the value at delivery time,
// so the last reported state of a relay is always its current state and an
// Events sink never runs inside the caller of a command. Persistence works
// the same way: one writer at a time saves the latest value of every dirty
// field.
type Simulator struct {
	opts Options

	mu           sync.Mutex
	state        device.Snapshot
	lastActivity time.Time
	events       device.Events

	// Guarded by mu.
	unreported        [device.RelayCount]bool
	sensorsUnreported bool
	unsaved           dirtyFields
	writing           bool

	// stateC wakes Run when something is unreported.
	stateC  chan struct{}
	queue   chan func(device.Events)
	running atomic.Bool

	now          func() time.Time
	drift        func() float64
	screenTicker time.Duration
}

// New creates a simulator, restoring persisted relay and screen state when a
// repository is configured.
func New(ctx context.Context, opts Options) (*Simulator, error) {
	s := &Simulator{
		opts: opts,
		state: device.Snapshot{
			Screen:      true,
			Temperature: initialTemperature,
			Humidity:    initialHumidity,
		},
		stateC:       make(chan struct{}, 1),
		queue:        make(chan func(device.Events), queueSize),
		now:          time.Now,
		drift:        func() float64 { return rand.Float64()*2 - 1 }, //nolint:gosec // simulated noise
		screenTicker: screenCheckInterval,
	}
	s.lastActivity = s.now()

	if opts.Repository != nil {
		st, err := opts.Repository.Load(ctx)
		switch {
		case errors.Is(err, device.ErrStateNotFound):
			s.logInfo("no persisted device state, starting with relays off")
		case err != nil:
			return nil, fmt.Errorf("restoring device state: %w", err)
		default:
			s.state.Relays = st.Relays
			s.state.Screen = st.Screen
			s.logInfo("restored device state", "relays", st.Relays, "screen", st.Screen)
		}
	}

	return s, nil
}

// SetEvents registers the callback sink.
func (s *Simulator) SetEvents(events device.Events) {
	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
}

// Run delivers queued callbacks and drives the sensor and screen timers
// until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	if events == nil {
		return ErrNoEvents
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	var sensorC <-chan time.Time
	if s.opts.SensorInterval > 0 {
		t := time.NewTicker(s.opts.SensorInterval)
		defer t.Stop()
		sensorC = t.C
	}

	var screenC <-chan time.Time
	if s.opts.ScreenTimeout > 0 {
		t := time.NewTicker(s.screenTicker)
		defer t.Stop()
		screenC = t.C
	}

	s.logInfo("device loop started")
	for {
		select {
		case <-ctx.Done():
			s.logInfo("device loop stopped")
			return nil
		case <-s.stateC:
			s.reportState(events)
		case fn := <-s.queue:
			fn(events)
		case <-sensorC:
			s.sampleSensors()
		case <-screenC:
			s.checkScreenTimeout()
		}
	}
}

// Snapshot returns the current device state.
func (s *Simulator) Snapshot() device.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetRelay switches a relay. It is reported only when the state changes.
func (s *Simulator) SetRelay(relay int, on bool) error {
	if !device.ValidRelay(relay) {
		return fmt.Errorf("%w: %d", device.ErrUnknownRelay, relay)
	}

	s.mu.Lock()
	changed := s.state.Relays[relay] != on
	if changed {
		s.state.Relays[relay] = on
		s.markRelay(relay)
	}
	s.mu.Unlock()

	if changed {
		s.flush()
	}
	return nil
}

// ToggleRelay inverts a relay.
func (s *Simulator) ToggleRelay(relay int) error {
	if !device.ValidRelay(relay) {
		return fmt.Errorf("%w: %d", device.ErrUnknownRelay, relay)
	}

	s.mu.Lock()
	s.state.Relays[relay] = !s.state.Relays[relay]
	s.markRelay(relay)
	s.mu.Unlock()

	s.flush()
	return nil
}

// SetScreen powers the display. Switching it on counts as activity.
func (s *Simulator) SetScreen(on bool) error {
	s.mu.Lock()
	s.state.Screen = on
	if on {
		s.lastActivity = s.now()
	}
	s.unsaved.screen = true
	s.mu.Unlock()

	s.flushWrites()
	return nil
}

// ResetState schedules one report of every relay state followed by both
// sensor readings. Requests made before the report is delivered merge.
func (s *Simulator) ResetState() {
	s.mu.Lock()
	for relay := range s.unreported {
		s.unreported[relay] = true
	}
	s.sensorsUnreported = true
	s.mu.Unlock()

	s.notifyState()
}

// PressButton injects a button event. Any press wakes the screen.
func (s *Simulator) PressButton(button int, action device.Action, count int) error {
	if !device.ValidRelay(button) {
		return fmt.Errorf("%w: %d", device.ErrUnknownRelay, button)
	}
	if count < 1 {
		return device.ErrInvalidCount
	}
	if _, err := device.ParseAction(string(action)); err != nil {
		return err
	}
	if !s.running.Load() {
		return device.ErrNotRunning
	}

	s.wake()

	s.enqueue("button", func(ev device.Events) {
		switch action {
		case device.ActionClick:
			ev.ButtonClicked(button, count)
		case device.ActionHeld:
			ev.ButtonHeld(button, count)
		case device.ActionReleased:
			ev.ButtonReleased(button, count)
		}
	})
	return nil
}

// InjectProximity injects a proximity reading. Readings above the threshold
// wake the screen.
func (s *Simulator) InjectProximity(value float64) {
	if value > s.opts.ProximityThreshold {
		s.wake()
	}
	s.enqueue("proximity", func(ev device.Events) {
		ev.ProximityTriggered(value)
	})
}

// dirtyFields marks persisted fields that changed since the last write.
type dirtyFields struct {
	relays [device.RelayCount]bool
	screen bool
}

// markRelay flags a relay for reporting and saving. Caller holds s.mu.
func (s *Simulator) markRelay(relay int) {
	s.unreported[relay] = true
	s.unsaved.relays[relay] = true
}

// flush wakes the loop and saves whatever changed.
func (s *Simulator) flush() {
	s.notifyState()
	s.flushWrites()
}

func (s *Simulator) notifyState() {
	select {
	case s.stateC <- struct{}{}:
	default:
		// Run has a wake-up pending and will see the new marks.
	}
}

// reportState delivers every unreported relay with its current value, then
// the sensors if a reset asked for them.
func (s *Simulator) reportState(ev device.Events) {
	s.mu.Lock()
	relays := s.unreported
	sensors := s.sensorsUnreported
	s.unreported = [device.RelayCount]bool{}
	s.sensorsUnreported = false
	snap := s.state
	s.mu.Unlock()

	for relay, dirty := range relays {
		if dirty {
			ev.RelayStateChanged(relay, snap.Relays[relay])
		}
	}
	if sensors {
		ev.TemperatureChanged(snap.Temperature)
		ev.HumidityChanged(snap.Humidity)
	}
}

// flushWrites saves dirty fields until none are left. Only one caller writes
// at a time; a caller that finds a write in progress returns at once and the
// active writer picks up its changes, always saving the latest value.
func (s *Simulator) flushWrites() {
	if s.opts.Repository == nil {
		return
	}

	s.mu.Lock()
	if s.writing {
		s.mu.Unlock()
		return
	}
	s.writing = true
	for s.unsaved != (dirtyFields{}) {
		dirty := s.unsaved
		snap := s.state
		s.unsaved = dirtyFields{}
		s.mu.Unlock()

		s.write(dirty, snap)

		s.mu.Lock()
	}
	s.writing = false
	s.mu.Unlock()
}

func (s *Simulator) write(dirty dirtyFields, snap device.Snapshot) {
	for relay, changed := range dirty.relays {
		if changed {
			s.persist("relay", func(ctx context.Context, repo device.StateRepository) error {
				return repo.SaveRelay(ctx, relay, snap.Relays[relay])
			})
		}
	}
	if dirty.screen {
		s.persist("screen", func(ctx context.Context, repo device.StateRepository) error {
			return repo.SaveScreen(ctx, snap.Screen)
		})
	}
}

// wake records activity and turns the screen on if it was off.
func (s *Simulator) wake() {
	s.mu.Lock()
	s.lastActivity = s.now()
	wasOff := !s.state.Screen
	s.state.Screen = true
	if wasOff {
		s.unsaved.screen = true
	}
	s.mu.Unlock()

	if wasOff {
		s.logDebug("screen woken")
		s.flushWrites()
	}
}

func (s *Simulator) checkScreenTimeout() {
	s.mu.Lock()
	expired := s.state.Screen && s.now().Sub(s.lastActivity) >= s.opts.ScreenTimeout
	if expired {
		s.state.Screen = false
		s.unsaved.screen = true
	}
	s.mu.Unlock()

	if expired {
		s.logDebug("screen timed out")
		s.flushWrites()
	}
}

// sampleSensors drifts both readings and reports them from the loop goroutine.
func (s *Simulator) sampleSensors() {
	s.mu.Lock()
	s.state.Temperature = clamp(s.state.Temperature+s.drift()*temperatureStep, -10, 50)
	s.state.Humidity = clamp(s.state.Humidity+s.drift()*humidityStep, 0, 100)
	temp, hum := s.state.Temperature, s.state.Humidity
	events := s.events
	s.mu.Unlock()

	events.TemperatureChanged(temp)
	events.HumidityChanged(hum)
}

func (s *Simulator) enqueue(kind string, fn func(device.Events)) {
	select {
	case s.queue <- fn:
	default:
		s.logWarn("device event queue full, dropping callback", "kind", kind)
	}
}

func (s *Simulator) persist(what string, save func(context.Context, device.StateRepository) error) {
	if s.opts.Repository == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := save(ctx, s.opts.Repository); err != nil {
		s.logWarn("failed to persist device state", "field", what, "error", err)
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func (s *Simulator) logDebug(msg string, kv ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, kv...)
	}
}

func (s *Simulator) logInfo(msg string, kv ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, kv...)
	}
}

func (s *Simulator) logWarn(msg string, kv ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, kv...)
	}
}

var (
	_ device.Driver   = (*Simulator)(nil)
	_ device.Injector = (*Simulator)(nil)
)
