package relay

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func newTestSession(t *testing.T) (*Session, *MockTransport, *MockDevice) {
	t.Helper()
	transport := NewMockTransport()
	dev := NewMockDevice()
	s, err := NewSession(SessionOptions{
		Transport:     transport,
		Subscriptions: NewCommandRouter(testConfig(), dev, nil),
		Device:        dev,
		QoS:           1,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s, transport, dev
}

func TestNewSession_Validation(t *testing.T) {
	dev := NewMockDevice()
	router := NewCommandRouter(testConfig(), dev, nil)

	tests := []struct {
		name string
		opts SessionOptions
	}{
		{"no transport", SessionOptions{Subscriptions: router, Device: dev}},
		{"no subscriptions", SessionOptions{Transport: NewMockTransport(), Device: dev}},
		{"no device", SessionOptions{Transport: NewMockTransport(), Subscriptions: router}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSession(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSession_InitialConnectFailure(t *testing.T) {
	s, transport, dev := newTestSession(t)
	transport.connectErr = errors.New("connection refused")

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectFailed", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
	if dev.Resets() != 0 || len(transport.SubscribeCalls()) != 0 {
		t.Error("failed connect must not subscribe or reset")
	}
}

func TestSession_ConnectTwice(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	s, transport, dev := newTestSession(t)

	if s.State() != StateDisconnected {
		t.Fatalf("initial State() = %v", s.State())
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("State() after Connect = %v, want connecting", s.State())
	}

	transport.SimulateConnect()
	if s.State() != StateConnected {
		t.Fatalf("State() = %v, want connected", s.State())
	}
	firstID := s.Stats().ConnectionID

	// Disconnect without detail must not panic.
	transport.SimulateDisconnect(nil)
	if s.State() != StateReconnecting {
		t.Fatalf("State() = %v, want reconnecting", s.State())
	}
	transport.SimulateReconnecting()
	if s.State() != StateReconnecting {
		t.Fatalf("State() = %v, want reconnecting", s.State())
	}

	transport.SimulateConnect()
	if s.State() != StateConnected {
		t.Fatalf("State() = %v, want connected", s.State())
	}

	stats := s.Stats()
	if stats.Connects != 2 {
		t.Errorf("Connects = %d, want 2", stats.Connects)
	}
	if stats.ConnectionID == "" || stats.ConnectionID == firstID {
		t.Errorf("ConnectionID = %q, want a fresh id per connection", stats.ConnectionID)
	}
	if dev.Resets() != 2 {
		t.Errorf("resets = %d, want 2", dev.Resets())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if s.State() != StateDisconnected || !transport.closed {
		t.Error("Close() should disconnect the transport")
	}

	// Late callbacks after Close are ignored.
	transport.SimulateConnect()
	transport.SimulateDisconnect(errors.New("eof"))
	if s.State() != StateDisconnected {
		t.Errorf("State() after late callbacks = %v", s.State())
	}
	if dev.Resets() != 2 {
		t.Error("late connect after Close must not reset device")
	}
}

func TestSession_LateLossAfterReconnect(t *testing.T) {
	s, transport, dev := newTestSession(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	transport.SimulateConnect()

	// The reconnect completes before the loss of the first connection is
	// reported.
	transport.SimulateReconnecting()
	transport.SimulateConnect()
	transport.SimulateDisconnect(errors.New("eof"))

	if s.State() != StateConnected {
		t.Fatalf("State() = %v, want connected", s.State())
	}
	s.Publish("Relay/relays/0/state", []byte("ON"), true)
	if stats := s.Stats(); stats.Published != 1 || stats.Dropped != 0 {
		t.Errorf("published = %d dropped = %d, want 1 and 0", stats.Published, stats.Dropped)
	}
	if dev.Resets() != 2 {
		t.Errorf("resets = %d, want 2", dev.Resets())
	}

	// A real loss of the current connection still demotes it.
	transport.SimulateDisconnect(errors.New("keepalive timeout"))
	if s.State() != StateReconnecting {
		t.Errorf("State() = %v, want reconnecting", s.State())
	}
}

func TestSession_LossBeforeReconnecting(t *testing.T) {
	s, transport, _ := newTestSession(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		transport.SimulateConnect()
		transport.SimulateDisconnect(errors.New("eof"))
		transport.SimulateReconnecting()
		transport.SimulateReconnecting()
		if s.State() != StateReconnecting {
			t.Fatalf("round %d: State() = %v, want reconnecting", i, s.State())
		}
	}

	transport.SimulateConnect()
	transport.SimulateDisconnect(errors.New("broker restarted"))
	if s.State() != StateReconnecting {
		t.Errorf("State() = %v, want reconnecting", s.State())
	}
}

func TestSession_ResubscribeEveryConnect(t *testing.T) {
	s, transport, dev := newTestSession(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		transport.SimulateConnect()
		transport.SimulateDisconnect(errors.New("keepalive timeout"))
	}

	calls := transport.SubscribeCalls()
	if len(calls) != n {
		t.Fatalf("SubscribeMany calls = %d, want %d", len(calls), n)
	}
	want := []string{"Relay/relays/0", "Relay/relays/1", "Relay/screen"}
	for i, topics := range calls {
		if !slices.Equal(topics, want) {
			t.Errorf("call %d topics = %v, want %v", i, topics, want)
		}
	}
	if dev.Resets() != n {
		t.Errorf("resets = %d, want %d", dev.Resets(), n)
	}
}

func TestSession_SubscribeBeforeReset(t *testing.T) {
	j := &journal{}
	transport := NewMockTransport()
	dev := NewMockDevice()
	dev.journal = j
	subs := &journalSubs{Subscriptions: NewCommandRouter(testConfig(), dev, nil), j: j}
	s, err := NewSession(SessionOptions{Transport: transport, Subscriptions: subs, Device: dev})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	transport.SimulateConnect()

	if got := j.all(); !slices.Equal(got, []string{"topics", "reset"}) {
		t.Errorf("order = %v, want [topics reset]", got)
	}
}

// journalSubs records when the topic table is read.
type journalSubs struct {
	Subscriptions
	j *journal
}

func (s *journalSubs) Topics() []string {
	s.j.add("topics")
	return s.Subscriptions.Topics()
}

func TestSession_SubscribeFailureStillResets(t *testing.T) {
	s, transport, dev := newTestSession(t)
	transport.subscribeErr = errors.New("not authorised")
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	transport.SimulateConnect()

	if dev.Resets() != 1 {
		t.Errorf("resets = %d, want 1", dev.Resets())
	}
}

func TestSession_Publish(t *testing.T) {
	s, transport, _ := newTestSession(t)

	// Not connected: dropped.
	s.Publish("Relay/relays/0/state", []byte("ON"), true)
	if len(transport.GetPublished()) != 0 {
		t.Fatal("publish while disconnected reached the transport")
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	transport.SimulateConnect()

	s.Publish("Relay/relays/0/state", []byte("ON"), true)
	s.Publish("Relay/buttons/0/click/1", []byte("ON"), false)

	got := transport.GetPublished()
	if len(got) != 2 {
		t.Fatalf("published %d, want 2", len(got))
	}
	if !got[0].Retained || got[1].Retained {
		t.Error("retained flag not passed through")
	}
	if got[0].QoS != 1 {
		t.Errorf("QoS = %d, want 1", got[0].QoS)
	}

	// Transport failure: dropped, not retried.
	transport.publishErr = errors.New("write: broken pipe")
	s.Publish("Relay/sensors/humidity", []byte("40.000000"), true)

	stats := s.Stats()
	if stats.Published != 2 || stats.Dropped != 2 {
		t.Errorf("published=%d dropped=%d, want 2/2", stats.Published, stats.Dropped)
	}
}

func TestSession_InboundDispatch(t *testing.T) {
	s, transport, dev := newTestSession(t)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	transport.SimulateConnect()

	transport.SimulateMessage("Relay/relays/1", []byte("OFF"))
	transport.SimulateMessage("Relay/relays/1", []byte("bogus"))

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if on, ok := dev.relays[1]; !ok || on {
		t.Errorf("relay 1 = %v (set=%v), want false", on, ok)
	}
	if len(dev.relays) != 1 {
		t.Errorf("relays = %v", dev.relays)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
