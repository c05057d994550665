// Package sim provides a simulated relay device.
//
// The simulator stands in for the hardware driver: it holds relay, screen
// and sensor state in memory, persists relay and screen positions through a
// device.StateRepository, and lets buttons and proximity readings be
// injected, which the status API exposes for manual testing.
package sim
