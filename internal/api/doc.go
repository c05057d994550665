// Package api implements the HTTP status API for the relay bridge.
//
// This package provides:
//   - Health and runtime metrics for the MQTT session and database
//   - The current device snapshot (relays, screen, sensors)
//   - Simulation endpoints that inject button presses and proximity readings
//     when the configured driver supports it
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// The API never talks to the bus directly. Simulated input goes through the
// device driver, so the bridge reacts to it exactly as it would to real
// hardware.
package api
