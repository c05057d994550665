package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/relay-bridge/internal/device"
)

// requireInjector answers 501 when the driver cannot take synthetic input.
func (s *Server) requireInjector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.injector == nil {
			writeError(w, http.StatusNotImplemented, ErrCodeNotImplemented, "device driver does not support simulated input")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handlePressButton serves POST /sim/buttons/{index}/{action}?count=N.
// count defaults to 1.
func (s *Server) handlePressButton(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "button index must be an integer")
		return
	}
	action, err := device.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeBadRequest(w, "action must be one of click, held, released")
		return
	}
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		if count, err = strconv.Atoi(raw); err != nil {
			writeBadRequest(w, "count must be an integer")
			return
		}
	}

	if err := s.injector.PressButton(index, action, count); err != nil {
		switch {
		case errors.Is(err, device.ErrUnknownRelay):
			writeNotFound(w, fmt.Sprintf("button %d does not exist", index))
		case errors.Is(err, device.ErrInvalidCount):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrNotRunning):
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "device loop is not running")
		default:
			s.logger.Error("simulated button press failed", "button", index, "error", err)
			writeInternalError(w, "button press failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"button": index,
		"action": action,
		"count":  count,
	})
}

// handleProximity serves POST /sim/proximity?value=V.
func (s *Server) handleProximity(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		writeBadRequest(w, "value must be a number")
		return
	}

	s.injector.InjectProximity(value)
	writeJSON(w, http.StatusAccepted, map[string]any{"value": value})
}
