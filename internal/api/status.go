package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/relay-bridge/internal/bridges/relay"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string             `json:"status"`
	Version  string             `json:"version"`
	Session  relay.SessionStats `json:"session"`
	Broker   string             `json:"broker,omitempty"`
	Database string             `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SystemMetrics represents the GET /metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	Session       relay.SessionStats `json:"session"`
}

// handleHealth reports "ok" while the session is connected and both the
// broker link and the database answer, "degraded" otherwise. A degraded
// bridge still answers 200 because the session reconnects on its own; only
// a failed database is a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Session: s.bridge.Stats(),
	}
	status := http.StatusOK

	if resp.Session.State != relay.StateConnected.String() {
		resp.Status = "degraded"
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if s.broker != nil {
		if err := s.broker.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.Broker = err.Error()
		} else {
			resp.Broker = "ok"
		}
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Session: s.bridge.Stats(),
	})
}

// handleState returns the device snapshot.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}
