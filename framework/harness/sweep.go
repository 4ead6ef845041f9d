package harness

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/cserve-project/cserve-test-harness/framework"
)

// sweepStrayProcesses terminates every process whose executable name is name, other than the
// current process. It is best-effort: processes that vanish or refuse to die are logged and
// skipped. It returns the PIDs that were signalled.
func sweepStrayProcesses(name string, logger framework.Logger) ([]int32, error) {
	if name == "" {
		return nil, nil
	}
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("could not list processes: %w", err)
	}
	self := int32(os.Getpid())
	var killed []int32
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		pname, err := p.Name()
		if err != nil || !sameProcessName(pname, name) {
			continue
		}
		logger.Printf("Terminating stray %s process (pid %d)", pname, p.Pid)
		if err := p.Terminate(); err != nil {
			logger.Printf("Could not terminate pid %d: %s", p.Pid, err)
			if err := p.Kill(); err != nil {
				continue
			}
		}
		killed = append(killed, p.Pid)
	}
	return killed, nil
}

// Process names reported by the OS may be truncated (15 characters on Linux) and on Windows
// carry an .exe suffix.
func sameProcessName(actual, wanted string) bool {
	actual = strings.TrimSuffix(actual, ".exe")
	wanted = strings.TrimSuffix(filepath.Base(wanted), ".exe")
	if actual == wanted {
		return true
	}
	return len(actual) == 15 && strings.HasPrefix(wanted, actual)
}

// checkPortsFree verifies that each port can be bound on the loopback interface and on all
// interfaces, returning a PortInUseError for the first one that cannot.
func checkPortsFree(ports []int) error {
	for _, port := range ports {
		for _, host := range []string{"127.0.0.1", ""} {
			l, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
			if err != nil {
				return &PortInUseError{Port: port, Err: err}
			}
			_ = l.Close()
		}
	}
	return nil
}
