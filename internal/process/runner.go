package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// outputBufferSize is the buffer size for capturing subprocess stdout/stderr.
	outputBufferSize = 4096

	defaultTimeout         = 30 * time.Second
	defaultGracefulTimeout = 2 * time.Second
)

// Command describes a one-shot subprocess.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH when not absolute.
	Binary string

	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// Timeout bounds the run. Zero means defaultTimeout.
	Timeout time.Duration
}

// CommandFromArgv builds a Command from an argv list such as
// ["service", "call", "activity", "42"].
func CommandFromArgv(argv []string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{
		Name:   strings.Join(argv, " "),
		Binary: argv[0],
		Args:   argv[1:],
	}
}

// CommandsFromArgv converts a list of argv lists.
func CommandsFromArgv(argvs [][]string) []Command {
	cmds := make([]Command, 0, len(argvs))
	for _, argv := range argvs {
		cmds = append(cmds, CommandFromArgv(argv))
	}
	return cmds
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner executes commands one at a time.
type Runner struct {
	logger          Logger
	gracefulTimeout time.Duration
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(logger Logger) *Runner {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{
		logger:          logger,
		gracefulTimeout: defaultGracefulTimeout,
	}
}

// RunAll runs every command in order. A failing command is logged and the
// remaining commands still run; the returned error joins all failures.
// Cancelling ctx stops the sequence.
func (r *Runner) RunAll(ctx context.Context, cmds []Command) error {
	var errs []error
	for _, c := range cmds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Run(ctx, c); err != nil {
			r.logger.Warn("startup command failed", "name", c.Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run starts the command and waits for it to exit, the timeout to expire or
// ctx to be cancelled. On timeout or cancellation the whole process group is
// sent SIGTERM, then SIGKILL after the graceful timeout.
func (r *Runner) Run(ctx context.Context, c Command) error {
	if c.Binary == "" {
		return ErrEmptyCommand
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cmd := exec.Command(c.Binary, c.Args...) //nolint:gosec // argv comes from the operator's config file

	// Create a new process group so we can signal all children
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if c.Env != nil {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	r.logger.Debug("running command", "name", c.Name, "binary", c.Binary, "args", c.Args)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.Name, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.captureOutput(&wg, c.Name, "stdout", stdout)
	go r.captureOutput(&wg, c.Name, "stderr", stderr)

	// Pipes must be drained before Wait closes them.
	exitCh := make(chan error, 1)
	go func() {
		wg.Wait()
		exitCh <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-exitCh:
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		r.logger.Info("command completed", "name", c.Name)
		return nil
	case <-timer.C:
		r.stop(cmd.Process.Pid, c.Name, exitCh)
		return fmt.Errorf("%s: %w after %s", c.Name, ErrTimeout, timeout)
	case <-ctx.Done():
		r.stop(cmd.Process.Pid, c.Name, exitCh)
		return ctx.Err()
	}
}

// stop terminates the process group and waits for exit.
func (r *Runner) stop(pid int, name string, exitCh <-chan error) {
	// Negative PID signals the process group created via Setpgid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.logger.Warn("failed to send SIGTERM to process group", "name", name, "error", err)
	}

	select {
	case <-exitCh:
		return
	case <-time.After(r.gracefulTimeout):
		r.logger.Warn("graceful shutdown timeout, sending SIGKILL", "name", name)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		r.logger.Error("failed to kill process group", "name", name, "error", err)
	}
	<-exitCh
}

// captureOutput reads from the given reader and logs each chunk.
func (r *Runner) captureOutput(wg *sync.WaitGroup, name, stream string, rd io.Reader) {
	defer wg.Done()
	buf := make([]byte, outputBufferSize)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			r.logger.Debug("process output",
				"name", name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}
