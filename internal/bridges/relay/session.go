package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the bus connection state.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// errUnknownCause stands in for a disconnect reported without detail.
var errUnknownCause = errors.New("unknown cause")

// Transport is the bus client the session drives.
//
// The transport owns reconnection: after a successful Connect it retries
// on its own and reports progress through the registered callbacks.
// Callbacks may arrive on any goroutine.
type Transport interface {
	Connect(ctx context.Context) error
	SubscribeMany(topics []string, qos byte, handler func(topic string, payload []byte)) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
	SetOnReconnecting(callback func())
	Close() error
}

// Subscriptions is the inbound side the session subscribes for.
type Subscriptions interface {
	Topics() []string
	Dispatch(topic string, payload []byte)
}

// StateResetter re-emits the device's current state.
type StateResetter interface {
	ResetState()
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Transport     Transport
	Subscriptions Subscriptions
	Device        StateResetter
	QoS           byte
	Logger        Logger
}

// SessionStats is a point-in-time view of the session.
type SessionStats struct {
	State        string `json:"state"`
	ConnectionID string `json:"connection_id,omitempty"`
	Connects     uint64 `json:"connects"`
	Published    uint64 `json:"published"`
	Dropped      uint64 `json:"dropped"`
}

// Session owns the bus connection lifecycle.
//
// Every transition into Connected, first connect or reconnect, subscribes
// the full topic set in one call and then asks the device to re-emit its
// state, so retained topics on the bus are refreshed after any outage.
//
// The transport delivers lifecycle callbacks on separate goroutines, so a
// connection-lost notification can arrive after the reconnect it caused.
// Each dropped connection produces exactly one such notification; one that
// belongs to a connection already replaced never demotes the current one.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	transport Transport
	subs      Subscriptions
	device    StateResetter
	qos       byte
	logger    Logger

	state     atomic.Int32
	closed    atomic.Bool
	connects  atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64

	idMu   sync.RWMutex
	connID string

	// transMu serialises callback-driven transitions. pendingLost counts
	// connections seen to drop through a reconnect attempt whose
	// connection-lost callback has not arrived yet.
	transMu     sync.Mutex
	pendingLost int
}

// NewSession creates a session and registers its transport callbacks.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions are required")
	}
	if opts.Device == nil {
		return nil, fmt.Errorf("device is required")
	}

	s := &Session{
		transport: opts.Transport,
		subs:      opts.Subscriptions,
		device:    opts.Device,
		qos:       opts.QoS,
		logger:    orNop(opts.Logger),
	}

	opts.Transport.SetOnConnect(s.handleConnected)
	opts.Transport.SetOnDisconnect(s.handleDisconnected)
	opts.Transport.SetOnReconnecting(s.handleReconnecting)

	return s, nil
}

// Connect performs the initial connection. A failure here is returned to
// the caller and is meant to be fatal; later disconnects are recovered by
// the transport and never surface as errors.
func (s *Session) Connect(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyStarted
	}

	s.logger.Info("connecting to broker")
	if err := s.transport.Connect(ctx); err != nil {
		s.state.CompareAndSwap(int32(StateConnecting), int32(StateDisconnected))
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *Session) Close() error {
	s.closed.Store(true)
	s.state.Store(int32(StateDisconnected))
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("closing transport: %w", err)
	}
	return nil
}

// Publish sends one message if connected. When not connected, or when the
// transport rejects the message, it is dropped and logged.
func (s *Session) Publish(topic string, payload []byte, retained bool) {
	if st := s.State(); st != StateConnected {
		s.dropped.Add(1)
		s.logger.Debug("not connected, dropping publish", "topic", topic, "state", st.String())
		return
	}

	if err := s.transport.Publish(topic, payload, s.qos, retained); err != nil {
		s.dropped.Add(1)
		s.logger.Warn("publish failed, dropping", "topic", topic, "error", err)
		return
	}
	s.published.Add(1)
}

// State returns the current connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns counters for the status API.
func (s *Session) Stats() SessionStats {
	s.idMu.RLock()
	id := s.connID
	s.idMu.RUnlock()

	return SessionStats{
		State:        s.State().String(),
		ConnectionID: id,
		Connects:     s.connects.Load(),
		Published:    s.published.Load(),
		Dropped:      s.dropped.Load(),
	}
}

func (s *Session) handleConnected() {
	if s.closed.Load() {
		return
	}
	s.transMu.Lock()
	prev := State(s.state.Swap(int32(StateConnected)))
	s.transMu.Unlock()
	n := s.connects.Add(1)

	id := uuid.NewString()
	s.idMu.Lock()
	s.connID = id
	s.idMu.Unlock()

	s.logger.Info("connected to broker",
		"connection_id", id,
		"previous_state", prev.String(),
		"connects", n,
	)

	topics := s.subs.Topics()
	if err := s.transport.SubscribeMany(topics, s.qos, s.subs.Dispatch); err != nil {
		s.logger.Error("subscribe failed", "topics", len(topics), "error", err)
	} else {
		s.logger.Info("subscribed to command topics", "topics", topics)
	}

	s.device.ResetState()
}

func (s *Session) handleDisconnected(err error) {
	if err == nil {
		err = errUnknownCause
	}
	if s.closed.Load() {
		return
	}

	s.transMu.Lock()
	stale := s.pendingLost > 0
	if stale {
		s.pendingLost--
	}
	if stale && s.State() == StateConnected {
		s.transMu.Unlock()
		s.logger.Debug("ignoring loss of a replaced connection", "error", err)
		return
	}
	s.state.Store(int32(StateReconnecting))
	s.transMu.Unlock()

	s.logger.Warn("connection to broker lost, reconnecting", "error", err)
}

func (s *Session) handleReconnecting() {
	if s.closed.Load() {
		return
	}

	s.transMu.Lock()
	if State(s.state.Swap(int32(StateReconnecting))) == StateConnected {
		// The loss notification for this connection is still in flight.
		s.pendingLost++
	}
	s.transMu.Unlock()

	s.logger.Debug("attempting to reconnect")
}
