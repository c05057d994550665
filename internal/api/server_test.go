package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/nerrad567/relay-bridge/internal/bridges/relay"
	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/logging"
)

type fakeBridge struct {
	stats    relay.SessionStats
	snapshot device.Snapshot
}

func (f *fakeBridge) Stats() relay.SessionStats { return f.stats }
func (f *fakeBridge) Snapshot() device.Snapshot { return f.snapshot }

type press struct {
	button int
	action device.Action
	count  int
}

type fakeInjector struct {
	mu        sync.Mutex
	presses   []press
	proximity []float64
	err       error
}

func (f *fakeInjector) PressButton(button int, action device.Action, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.presses = append(f.presses, press{button, action, count})
	return nil
}

func (f *fakeInjector) InjectProximity(value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proximity = append(f.proximity, value)
}

type fakeCheck struct{ err error }

func (f fakeCheck) HealthCheck(context.Context) error { return f.err }

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Bridge == nil {
		deps.Bridge = &fakeBridge{stats: relay.SessionStats{State: "connected", Connects: 1}}
	}
	if deps.Version == "" {
		deps.Version = "test"
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Bridge: &fakeBridge{}}); err == nil {
		t.Error("New() without logger: expected error")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without bridge: expected error")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		state      string
		db         HealthChecker
		broker     HealthChecker
		wantCode   int
		wantStatus string
		wantDB     string
		wantBroker string
	}{
		{"connected no checks", "connected", nil, nil, http.StatusOK, "ok", "", ""},
		{"connected all ok", "connected", fakeCheck{}, fakeCheck{}, http.StatusOK, "ok", "ok", "ok"},
		{"reconnecting", "reconnecting", fakeCheck{}, nil, http.StatusOK, "degraded", "ok", ""},
		{"broker link down", "connected", fakeCheck{}, fakeCheck{err: errors.New("mqtt: not connected")}, http.StatusOK, "degraded", "ok", "mqtt: not connected"},
		{"db down", "connected", fakeCheck{err: errors.New("disk I/O error")}, fakeCheck{}, http.StatusServiceUnavailable, "unhealthy", "disk I/O error", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, Deps{
				Bridge:   &fakeBridge{stats: relay.SessionStats{State: tt.state, Connects: 3}},
				Database: tt.db,
				Broker:   tt.broker,
			})

			rec := do(t, srv, http.MethodGet, "/api/v1/health")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decode[HealthResponse](t, rec)
			if body.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Database != tt.wantDB {
				t.Errorf("Database = %q, want %q", body.Database, tt.wantDB)
			}
			if body.Broker != tt.wantBroker {
				t.Errorf("Broker = %q, want %q", body.Broker, tt.wantBroker)
			}
			if body.Session.Connects != 3 {
				t.Errorf("Session.Connects = %d, want 3", body.Session.Connects)
			}
			if body.Version != "test" {
				t.Errorf("Version = %q, want test", body.Version)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := do(t, srv, http.MethodGet, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[SystemMetrics](t, rec)
	if body.Runtime.Goroutines == 0 {
		t.Error("Runtime.Goroutines = 0")
	}
	if body.Session.State != "connected" {
		t.Errorf("Session.State = %q, want connected", body.Session.State)
	}
}

func TestState(t *testing.T) {
	snap := device.Snapshot{
		Relays:      [device.RelayCount]bool{true, false},
		Screen:      true,
		Temperature: 21.5,
		Humidity:    40,
	}
	srv := testServer(t, Deps{Bridge: &fakeBridge{snapshot: snap}})

	rec := do(t, srv, http.MethodGet, "/api/v1/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[device.Snapshot](t, rec); got != snap {
		t.Errorf("snapshot = %+v, want %+v", got, snap)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestPressButton(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		injErr    error
		wantCode  int
		wantPress *press
	}{
		{"click default count", "/api/v1/sim/buttons/0/click", nil, http.StatusAccepted, &press{0, device.ActionClick, 1}},
		{"double click", "/api/v1/sim/buttons/1/click?count=2", nil, http.StatusAccepted, &press{1, device.ActionClick, 2}},
		{"held", "/api/v1/sim/buttons/1/held", nil, http.StatusAccepted, &press{1, device.ActionHeld, 1}},
		{"released", "/api/v1/sim/buttons/0/released?count=3", nil, http.StatusAccepted, &press{0, device.ActionReleased, 3}},
		{"bad index", "/api/v1/sim/buttons/x/click", nil, http.StatusBadRequest, nil},
		{"bad action", "/api/v1/sim/buttons/0/tap", nil, http.StatusBadRequest, nil},
		{"bad count", "/api/v1/sim/buttons/0/click?count=two", nil, http.StatusBadRequest, nil},
		{"unknown button", "/api/v1/sim/buttons/5/click", fmt.Errorf("%w: 5", device.ErrUnknownRelay), http.StatusNotFound, nil},
		{"zero count", "/api/v1/sim/buttons/0/click?count=0", device.ErrInvalidCount, http.StatusBadRequest, nil},
		{"loop stopped", "/api/v1/sim/buttons/0/click", device.ErrNotRunning, http.StatusServiceUnavailable, nil},
		{"other error", "/api/v1/sim/buttons/0/click", errors.New("boom"), http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj := &fakeInjector{err: tt.injErr}
			srv := testServer(t, Deps{Injector: inj})

			rec := do(t, srv, http.MethodPost, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}

			inj.mu.Lock()
			defer inj.mu.Unlock()
			if tt.wantPress == nil {
				if len(inj.presses) != 0 {
					t.Errorf("presses = %v, want none", inj.presses)
				}
				return
			}
			if len(inj.presses) != 1 || inj.presses[0] != *tt.wantPress {
				t.Errorf("presses = %v, want [%v]", inj.presses, *tt.wantPress)
			}
		})
	}
}

func TestProximity(t *testing.T) {
	inj := &fakeInjector{}
	srv := testServer(t, Deps{Injector: inj})

	rec := do(t, srv, http.MethodPost, "/api/v1/sim/proximity?value=6200")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(inj.proximity) != 1 || inj.proximity[0] != 6200 {
		t.Errorf("proximity = %v, want [6200]", inj.proximity)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/sim/proximity?value=near")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSim_WithoutInjector(t *testing.T) {
	srv := testServer(t, Deps{})

	for _, target := range []string{"/api/v1/sim/buttons/0/click", "/api/v1/sim/proximity?value=1"} {
		rec := do(t, srv, http.MethodPost, target)
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("%s: status = %d, want 501", target, rec.Code)
		}
		if body := decode[Error](t, rec); body.Code != ErrCodeNotImplemented {
			t.Errorf("%s: code = %q", target, body.Code)
		}
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := do(t, srv, http.MethodGet, "/api/v1/health")
	if len(rec.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", rec.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want abc123", got)
	}
}

type panickingBridge struct{ fakeBridge }

func (panickingBridge) Snapshot() device.Snapshot { panic("snapshot exploded") }

func TestRecoveryMiddleware(t *testing.T) {
	srv := testServer(t, Deps{Bridge: &panickingBridge{}})

	rec := do(t, srv, http.MethodGet, "/api/v1/state")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestNotFoundAndMethod(t *testing.T) {
	srv := testServer(t, Deps{Injector: &fakeInjector{}})

	if rec := do(t, srv, http.MethodGet, "/api/v1/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/sim/proximity"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET sim status = %d, want 405", rec.Code)
	}
}

func TestStartClose(t *testing.T) {
	srv := testServer(t, Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
	})

	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestStart_PortInUse(t *testing.T) {
	first := testServer(t, Deps{Config: config.APIConfig{Host: "127.0.0.1", Port: 0}})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer first.Close()

	_, rawPort, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, _ := strconv.Atoi(rawPort)
	second := testServer(t, Deps{Config: config.APIConfig{Host: "127.0.0.1", Port: port}})
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Error("Start() on a bound port: expected error")
	}
}
