package harness

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fatih/color"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const (
	defaultPollInterval = time.Millisecond * 200
	defaultPollAttempts = 10
	defaultStopTimeout  = time.Second * 5
)

var serverOutputColor = color.New(color.Faint) //nolint:gochecknoglobals

type supervisorConfig struct {
	logFile      string
	readyMarker  string
	processName  string
	pollInterval time.Duration
	pollAttempts int
	stopTimeout  time.Duration
	workDir      string
	args         []string
	debugLogger  framework.Logger
	echo         framework.Logger
	cleanupGlobs []string
	tmpDirs      []string
	inheritEnv   bool
	skipSweep    bool
	sessionID    string
}

func defaultSupervisorConfig() supervisorConfig {
	return supervisorConfig{
		logFile:      servicedef.DefaultLogFile,
		readyMarker:  servicedef.ReadyMarker,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
		stopTimeout:  defaultStopTimeout,
		debugLogger:  framework.NullLogger(),
		echo:         framework.NullLogger(),
	}
}

// SupervisorOption is an option for NewProcessSupervisor.
type SupervisorOption helpers.ConfigOption[supervisorConfig]

func option(fn func(*supervisorConfig) error) SupervisorOption {
	return helpers.ConfigOptionFunc[supervisorConfig](fn)
}

// LogFile sets where the captured output is written. A relative path is resolved against the
// working directory of the server. The default is "cserver.log".
func LogFile(path string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		if path == "" {
			return errors.New("log file path cannot be empty")
		}
		c.logFile = path
		return nil
	})
}

// ReadyMarker sets the text whose appearance in the output means the server is ready.
func ReadyMarker(marker string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		if marker == "" {
			return errors.New("ready marker cannot be empty")
		}
		c.readyMarker = marker
		return nil
	})
}

// ProcessName sets the executable name used when looking for stray processes. The default is the
// base name of the executable.
func ProcessName(name string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.processName = name
		return nil
	})
}

// PollInterval sets how long to wait between readiness checks.
func PollInterval(d time.Duration) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		c.pollInterval = d
		return nil
	})
}

// PollAttempts sets how many readiness checks are made before giving up.
func PollAttempts(n int) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		if n < 1 {
			return errors.New("poll attempts must be at least 1")
		}
		c.pollAttempts = n
		return nil
	})
}

// StopTimeout sets how long Stop waits after asking the process to exit before killing it.
func StopTimeout(d time.Duration) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.stopTimeout = d
		return nil
	})
}

// WorkDir sets the working directory of the server process. Relative paths in the profile are
// interpreted by the server relative to this directory, so the harness resolves its own relative
// paths (log file, cleanup globs, tmp directories) against it too.
func WorkDir(dir string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.workDir = dir
		return nil
	})
}

// Args sets command-line arguments for the server.
func Args(args ...string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.args = helpers.CopyOf(args)
		return nil
	})
}

// DebugLogger sets the Logger that receives the supervisor's own diagnostic messages.
func DebugLogger(logger framework.Logger) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		if logger != nil {
			c.debugLogger = logger
		}
		return nil
	})
}

// EchoOutput copies each line of server output to w as it arrives, in faint color on a
// terminal. Lines matching any of the exclude patterns are not echoed, but are still captured.
func EchoOutput(w io.Writer, exclude ...*regexp.Regexp) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		if w == nil {
			c.echo = framework.NullLogger()
			return nil
		}
		c.echo = framework.LoggerWithPrefix(
			framework.NewWriterLogger(newFilteredWriter(w, exclude), serverOutputColor),
			"[cserver] ",
		)
		return nil
	})
}

// CleanupGlobs sets file patterns whose matches are removed by Cleanup.
func CleanupGlobs(patterns ...string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		for _, p := range patterns {
			if _, err := filepath.Match(p, ""); err != nil {
				return fmt.Errorf("invalid cleanup pattern %q: %w", p, err)
			}
		}
		c.cleanupGlobs = append(c.cleanupGlobs, patterns...)
		return nil
	})
}

// TmpDirs sets directories whose contents are deleted before the server starts.
func TmpDirs(dirs ...string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.tmpDirs = append(c.tmpDirs, dirs...)
		return nil
	})
}

// WithInheritedEnv causes the server to receive the harness's own environment in addition to
// the process configuration. Configuration values take precedence.
func WithInheritedEnv() SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.inheritEnv = true
		return nil
	})
}

// SkipStraySweep disables the search for leftover server processes before startup.
func SkipStraySweep() SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.skipSweep = true
		return nil
	})
}

// SessionID sets the identifier written at the top of the log file. By default a random UUID
// is generated.
func SessionID(id string) SupervisorOption {
	return option(func(c *supervisorConfig) error {
		c.sessionID = id
		return nil
	})
}
