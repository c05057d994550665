package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// journal is a shared, ordered record of side effects across mocks.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// MockDevice implements device.Commander for testing.
type MockDevice struct {
	mu      sync.Mutex
	toggles []int
	relays  map[int]bool
	screen  []bool
	resets  int
	fail    error
	journal *journal
}

func NewMockDevice() *MockDevice {
	return &MockDevice{relays: make(map[int]bool)}
}

func (m *MockDevice) SetRelay(relay int, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.relays[relay] = on
	m.journal.add("set_relay %d %v", relay, on)
	return nil
}

func (m *MockDevice) ToggleRelay(relay int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.toggles = append(m.toggles, relay)
	m.journal.add("toggle %d", relay)
	return nil
}

func (m *MockDevice) SetScreen(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.screen = append(m.screen, on)
	m.journal.add("screen %v", on)
	return nil
}

func (m *MockDevice) ResetState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.journal.add("reset")
}

func (m *MockDevice) Toggles() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.toggles...)
}

func (m *MockDevice) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// mutations counts every state-changing command received.
func (m *MockDevice) mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.toggles) + len(m.relays) + len(m.screen)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// MockPublisher implements Publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	published []mockPublish
	journal   *journal
}

func (m *MockPublisher) Publish(topic string, payload []byte, retained bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, Retained: retained})
	m.journal.add("publish %s", topic)
}

func (m *MockPublisher) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// MockTransport implements Transport for testing.
type MockTransport struct {
	mu             sync.Mutex
	connectErr     error
	publishErr     error
	subscribeErr   error
	connectOnDial  bool
	subscribeCalls [][]string
	published      []mockPublish
	handler        func(topic string, payload []byte)
	closed         bool

	onConnect      func()
	onDisconnect   func(err error)
	onReconnecting func()
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Connect(context.Context) error {
	m.mu.Lock()
	err := m.connectErr
	dial := m.connectOnDial
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if dial {
		m.SimulateConnect()
	}
	return nil
}

func (m *MockTransport) SubscribeMany(topics []string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscribeCalls = append(m.subscribeCalls, append([]string(nil), topics...))
	m.handler = handler
	return nil
}

func (m *MockTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockTransport) SetOnConnect(cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = cb
}

func (m *MockTransport) SetOnDisconnect(cb func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = cb
}

func (m *MockTransport) SetOnReconnecting(cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = cb
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SimulateConnect fires the on-connect callback as the transport would
// after a successful (re)connect.
func (m *MockTransport) SimulateConnect() {
	m.mu.Lock()
	cb := m.onConnect
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// SimulateDisconnect fires the connection-lost callback.
func (m *MockTransport) SimulateDisconnect(err error) {
	m.mu.Lock()
	cb := m.onDisconnect
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// SimulateReconnecting fires the reconnecting callback.
func (m *MockTransport) SimulateReconnecting() {
	m.mu.Lock()
	cb := m.onReconnecting
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// SimulateMessage delivers an inbound message to the subscribed handler.
func (m *MockTransport) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func (m *MockTransport) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockTransport) SubscribeCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.subscribeCalls...)
}

// mockLogger records messages by level.
type mockLogger struct {
	mu    sync.Mutex
	byLvl map[string][]string
}

func newMockLogger() *mockLogger {
	return &mockLogger{byLvl: make(map[string][]string)}
}

func (l *mockLogger) log(level, msg string) {
	l.mu.Lock()
	l.byLvl[level] = append(l.byLvl[level], msg)
	l.mu.Unlock()
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *mockLogger) Info(msg string, _ ...any) { l.log("info", msg) }
func (l *mockLogger) Warn(msg string, _ ...any) { l.log("warn", msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *mockLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byLvl[level])
}

// testConfig returns the default bridge configuration:
// both buttons send click and held, no toggle.
func testConfig() Config {
	return Config{
		TopicPrefix: "Relay",
		Relays: map[int]Flags{
			0: FlagSendClick | FlagSendHeld,
			1: FlagSendClick | FlagSendHeld,
		},
	}
}

var _ device.Commander = (*MockDevice)(nil)
