// Package process runs short-lived helper commands during bridge startup.
//
// On the Wink Relay these are shell calls that prepare the Android side of
// the device (for example hiding the system status bar) before the device
// loop takes over the screen.
//
// Features:
//   - Per-command timeout with graceful SIGTERM then SIGKILL of the process group
//   - Log capture from subprocess stdout/stderr
//   - Context-based cancellation for clean shutdown
//
// Example usage:
//
//	runner := process.NewRunner(logger)
//	runner.RunAll(ctx, process.CommandsFromArgv(cfg.Device.StartupCommands))
package process
