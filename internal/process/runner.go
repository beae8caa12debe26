package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ErrCommandFailed is returned when a command exits non-zero, cannot be
// started, or exceeds its timeout.
var ErrCommandFailed = errors.New("process: command failed")

// outputLimit bounds the combined stdout/stderr captured from a command.
const outputLimit = 4096

// Command describes one short-lived external command.
type Command struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Argv is the binary followed by its arguments.
	Argv []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// Timeout bounds the whole run. 0 means the context alone decides.
	Timeout time.Duration

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Result describes a finished command.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner executes external commands scoped to a context.
type Runner struct {
	logger Logger
}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run executes cmd and waits for it to finish.
//
// The command runs in its own process group. When the timeout or ctx
// expires the group receives SIGTERM, then SIGKILL after GracefulTimeout.
//
// Returns:
//   - Result: Exit code, captured output (truncated) and duration
//   - error: ErrCommandFailed wrapping the cause, or nil on exit code 0
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s: empty command", ErrCommandFailed, cmd.Name)
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	graceful := cmd.GracefulTimeout
	if graceful <= 0 {
		graceful = 5 * time.Second
	}

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...) //nolint:gosec // argv comes from operator configuration

	// Create a new process group so we can signal all children on timeout
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = graceful

	if cmd.Env != nil {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.WorkDir != "" {
		c.Dir = cmd.WorkDir
	}

	out := &limitedBuffer{limit: outputLimit}
	c.Stdout = out
	c.Stderr = out

	r.logger.Debug("running command", "name", cmd.Name, "argv", cmd.Argv)

	start := time.Now()
	err := c.Run()
	res := Result{
		ExitCode: c.ProcessState.ExitCode(),
		Output:   out.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%w)", err, ctxErr)
		}
		r.logger.Warn("command failed",
			"name", cmd.Name,
			"exit_code", res.ExitCode,
			"output", res.Output,
			"error", err,
		)
		return res, fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd.Name, err)
	}

	r.logger.Debug("command finished", "name", cmd.Name, "duration", res.Duration)
	return res, nil
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "...(truncated)"
	}
	return b.buf.String()
}
