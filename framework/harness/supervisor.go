package harness

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alessio/shellescape"
	"github.com/google/uuid"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
)

const (
	drainTimeout       = time.Second * 2
	portReleaseTimeout = time.Second * 2
	startupTailLines   = 20
)

type supervisorState int

const (
	stateNew supervisorState = iota
	stateRunning
	stateStopped
)

// ProcessSupervisor starts the server under test as a child process, waits for it to report that
// it is ready, captures all of its output, and stops it again. One supervisor manages exactly one
// process over its lifetime; it cannot be restarted after Stop.
//
// All methods are safe to call from multiple goroutines, and Stop and Cleanup are safe to call on
// a supervisor whose Start failed or was never called.
type ProcessSupervisor struct {
	executable string
	config     ProcessConfig
	cfg        supervisorConfig
	logger     framework.Logger

	lock      sync.Mutex
	state     supervisorState
	cmd       *exec.Cmd
	pipe      *os.File
	drain     *LogDrain
	exited    chan struct{}
	waitErr   error
	startedAt time.Time
}

// NewProcessSupervisor creates a supervisor for the given executable and configuration. It does
// not start anything.
func NewProcessSupervisor(
	executable string,
	config ProcessConfig,
	options ...SupervisorOption,
) (*ProcessSupervisor, error) {
	if executable == "" {
		return nil, errors.New("server executable path is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultSupervisorConfig()
	if err := helpers.ApplyOptions(&cfg, options...); err != nil {
		return nil, err
	}
	if strings.ContainsRune(executable, filepath.Separator) || strings.ContainsRune(executable, '/') {
		abs, err := filepath.Abs(executable)
		if err != nil {
			return nil, fmt.Errorf("invalid executable path %q: %w", executable, err)
		}
		executable = abs
	}
	if cfg.processName == "" {
		cfg.processName = filepath.Base(executable)
	}
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.New().String()
	}
	if cfg.workDir != "" {
		abs, err := filepath.Abs(cfg.workDir)
		if err != nil {
			return nil, fmt.Errorf("invalid working directory %q: %w", cfg.workDir, err)
		}
		cfg.workDir = abs
	}
	cfg.logFile = resolvePath(cfg.workDir, cfg.logFile)
	for i, g := range cfg.cleanupGlobs {
		cfg.cleanupGlobs[i] = resolvePath(cfg.workDir, g)
	}
	for i, d := range cfg.tmpDirs {
		cfg.tmpDirs[i] = resolvePath(cfg.workDir, d)
	}
	return &ProcessSupervisor{
		executable: executable,
		config:     config,
		cfg:        cfg,
		logger:     cfg.debugLogger,
	}, nil
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if base == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(base, path)
}

// Start launches the server and blocks until it is ready or the polling budget is used up.
//
// Before launching, it terminates any stray processes with the same name, verifies that the
// configured ports are free, deletes the previous log file, and empties the tmp directories. If
// the server does not become ready, Start kills it, writes whatever output was captured to the
// log file, and returns a *StartupTimeoutError.
func (s *ProcessSupervisor) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch s.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrSupervisorStopped
	}

	ports := s.config.Ports()
	if !s.cfg.skipSweep {
		killed, err := sweepStrayProcesses(s.cfg.processName, s.logger)
		if err != nil {
			s.logger.Printf("Stray process sweep failed: %s", err)
		}
		if len(killed) > 0 {
			_, _ = helpers.PollAttempts(
				func() bool { return checkPortsFree(ports) == nil },
				int(portReleaseTimeout/(time.Millisecond*100)),
				time.Millisecond*100,
				nil,
			)
		}
	}
	if err := checkPortsFree(ports); err != nil {
		return err
	}

	if err := removeFileIfExists(s.cfg.logFile); err != nil {
		return fmt.Errorf("could not remove old log file: %w", err)
	}
	for _, dir := range s.cfg.tmpDirs {
		for _, w := range emptyDir(dir) {
			s.logger.Printf("Could not clean tmp directory: %s", w)
		}
	}

	cmd := exec.Command(s.executable, s.cfg.args...) //nolint:gosec
	cmd.Dir = s.cfg.workDir
	cmd.Env = s.config.Environ()
	if s.cfg.inheritEnv {
		cmd.Env = append(os.Environ(), cmd.Env...)
	}
	pipeReader, pipeWriter, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("could not create output pipe: %w", err)
	}
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	s.logger.Printf("Starting server (session %s): %s", s.cfg.sessionID,
		shellescape.QuoteCommand(append([]string{s.executable}, s.cfg.args...)))
	for _, kv := range s.config.Environ() {
		s.logger.Printf("  env %s", shellescape.Quote(kv))
	}

	if err := cmd.Start(); err != nil {
		_ = pipeReader.Close()
		_ = pipeWriter.Close()
		s.state = stateStopped
		return fmt.Errorf("could not start %s: %w", s.executable, err)
	}
	// The child has its own copy of the write end; closing ours means the reader sees EOF
	// once the child exits.
	_ = pipeWriter.Close()

	s.cmd = cmd
	s.pipe = pipeReader
	s.drain = NewLogDrain(s.cfg.readyMarker, s.cfg.echo)
	s.exited = make(chan struct{})
	s.startedAt = time.Now()
	s.state = stateRunning
	s.drain.Start(pipeReader)
	go func() {
		err := cmd.Wait()
		s.waitErr = err
		close(s.exited)
	}()

	attempts, ready := helpers.PollAttempts(s.drain.IsReady, s.cfg.pollAttempts, s.cfg.pollInterval, s.drain.Done())
	elapsed := time.Since(s.startedAt)
	if ready {
		s.logger.Printf("Server is ready (pid %d) after %s", cmd.Process.Pid, elapsed.Round(time.Millisecond))
		return nil
	}

	timeoutErr := &StartupTimeoutError{
		Elapsed:  elapsed,
		Attempts: attempts,
		Exited:   isClosed(s.drain.Done()),
	}
	if logErr := s.stopLocked(true); logErr != nil {
		s.logger.Printf("Could not write log file: %s", logErr)
	}
	timeoutErr.LastLines = s.drain.Tail(startupTailLines)
	return timeoutErr
}

// Stop terminates the server if it is running and writes the captured output to the log file,
// replacing any previous contents. It first asks the process to exit, and kills it if it has not
// done so within the stop timeout.
//
// Stop is idempotent, and does nothing if the server was never started. The returned error is
// only for a failure to write the log; termination errors for a process that had already exited
// are ignored.
func (s *ProcessSupervisor) Stop() error {
	if s == nil {
		return nil
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stopLocked(false)
}

func (s *ProcessSupervisor) stopLocked(kill bool) error {
	previous := s.state
	s.state = stateStopped
	if previous != stateRunning {
		return nil
	}

	s.terminate(kill)
	if isClosed(s.exited) {
		s.logger.Printf("Server exited: %s", describeExit(s.waitErr))
	}

	if !helpers.WaitForClose(s.drain.Done(), drainTimeout) {
		// A grandchild may still hold the write end of the pipe. Closing the read end ends the
		// drain; whatever it had not read yet is lost.
		s.logger.Printf("Output pipe still open after server exit; closing it")
		_ = s.pipe.Close()
		<-s.drain.Done()
	}
	_ = s.pipe.Close()
	if err := s.drain.Err(); err != nil {
		s.logger.Printf("Error reading server output: %s", err)
	}
	return s.writeLog()
}

func (s *ProcessSupervisor) terminate(kill bool) {
	if isClosed(s.exited) {
		return
	}
	if !kill {
		if err := interruptProcess(s.cmd.Process); err != nil {
			kill = true
		} else if helpers.WaitForClose(s.exited, s.cfg.stopTimeout) {
			return
		} else {
			s.logger.Printf("Server did not exit within %s; killing it", s.cfg.stopTimeout)
		}
	}
	_ = s.cmd.Process.Kill()
	if !helpers.WaitForClose(s.exited, s.cfg.stopTimeout) {
		s.logger.Printf("Server process %d did not exit after being killed", s.cmd.Process.Pid)
	}
}

func describeExit(err error) string {
	if err == nil {
		return "status 0"
	}
	return err.Error()
}

func interruptProcess(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}

func (s *ProcessSupervisor) writeLog() error {
	var b strings.Builder
	for _, line := range s.drain.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.cfg.logFile, []byte(b.String()), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("could not write log file %s: %w", s.cfg.logFile, err)
	}
	s.logger.Printf("Server output written to %s", s.cfg.logFile)
	return nil
}

// Cleanup removes the files matching the configured cleanup patterns. Files that cannot be
// removed are reported as warnings and logged. It can be called any number of times.
func (s *ProcessSupervisor) Cleanup() []CleanupWarning {
	if s == nil {
		return nil
	}
	warnings := removeGlobs(s.cfg.cleanupGlobs)
	for _, w := range warnings {
		s.logger.Printf("Cleanup: %s", w)
	}
	return warnings
}

// Ready returns true if the server is running and has printed its readiness marker.
func (s *ProcessSupervisor) Ready() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state == stateRunning && s.drain.IsReady()
}

// Output returns a copy of the output lines captured so far.
func (s *ProcessSupervisor) Output() []string {
	s.lock.Lock()
	drain := s.drain
	s.lock.Unlock()
	if drain == nil {
		return nil
	}
	return drain.Lines()
}

// ServerOutput returns the captured output as a single string.
func (s *ProcessSupervisor) ServerOutput() string {
	return strings.Join(s.Output(), "\n")
}

// LogFile returns the absolute path of the log file.
func (s *ProcessSupervisor) LogFile() string {
	return s.cfg.logFile
}

// PID returns the process ID of the server, or zero if it has not been started.
func (s *ProcessSupervisor) PID() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Exited returns true if the server process was started and has since exited for any reason.
func (s *ProcessSupervisor) Exited() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.exited != nil && isClosed(s.exited)
}

// Config returns the process configuration.
func (s *ProcessSupervisor) Config() ProcessConfig {
	return s.config
}

// Features returns the features enabled by the process configuration.
func (s *ProcessSupervisor) Features() framework.Features {
	return s.config.Features()
}

// SessionID returns the identifier of this supervisor's session.
func (s *ProcessSupervisor) SessionID() string {
	return s.cfg.sessionID
}

// Executable returns the resolved path of the server executable.
func (s *ProcessSupervisor) Executable() string {
	return s.executable
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
