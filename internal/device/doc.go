// Package device defines the boundary between the bridge and the relay
// hardware.
//
// The bridge consumes a Driver: it issues commands through the Commander
// half and receives hardware callbacks through an Events sink registered
// with SetEvents. Relays and buttons are addressed by index, 0 for the upper
// pair and 1 for the lower pair.
//
// Drivers may persist their outputs through a StateRepository so that relay
// positions survive a restart. SQLiteStateRepository stores them in the
// device_state table created by the embedded migrations.
//
// The only built-in driver is the simulator in the sim subpackage.
package device
