package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAlreadyStarted is returned by Start if the supervisor has already started its process.
	ErrAlreadyStarted = errors.New("server process was already started")

	// ErrSupervisorStopped is returned by Start after Stop has been called. A supervisor manages
	// only one process in its lifetime.
	ErrSupervisorStopped = errors.New("supervisor was stopped and cannot be restarted")
)

// ConfigError describes an invalid process configuration.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid server configuration: %s %s", e.Key, e.Reason)
}

// StartupTimeoutError is returned by Start when the server did not print its readiness marker
// within the polling budget, or exited before doing so.
type StartupTimeoutError struct {
	Elapsed  time.Duration
	Attempts int

	// Exited is true if the process ended before becoming ready.
	Exited bool

	// LastLines is the tail of the captured output, for diagnosis.
	LastLines []string
}

func (e *StartupTimeoutError) Error() string {
	what := "did not become ready"
	if e.Exited {
		what = "exited before becoming ready"
	}
	msg := fmt.Sprintf("server %s after %d checks (%s)", what, e.Attempts, e.Elapsed.Round(time.Millisecond))
	if len(e.LastLines) > 0 {
		msg += "; last output:\n  " + strings.Join(e.LastLines, "\n  ")
	}
	return msg
}

// PortInUseError is returned by Start when a configured port cannot be bound, meaning that some
// other process (possibly a server left over from an earlier run) is still listening on it.
type PortInUseError struct {
	Port int
	Err  error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use: %s", e.Port, e.Err)
}

func (e *PortInUseError) Unwrap() error {
	return e.Err
}

// CleanupWarning reports a file that could not be removed during cleanup. Warnings are never
// fatal.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w CleanupWarning) String() string {
	return fmt.Sprintf("could not remove %s: %s", w.Path, w.Err)
}
