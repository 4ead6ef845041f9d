package harness

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
)

// LogDrain reads the merged output of the server process line by line on its own goroutine. It
// keeps every non-empty line in order, echoes each one to a Logger, and signals readiness the
// first time a line contains the marker text.
//
// The drain owns its line buffer; other components only ever see copies.
type LogDrain struct {
	marker    string
	echo      framework.Logger
	lines     []string
	lock      sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
	isReady   atomic.Bool
	done      chan struct{}
	err       error
	started   atomic.Bool
}

// NewLogDrain creates a LogDrain that watches for marker. If echo is nil, lines are not echoed.
func NewLogDrain(marker string, echo framework.Logger) *LogDrain {
	if echo == nil {
		echo = framework.NullLogger()
	}
	return &LogDrain{
		marker: marker,
		echo:   echo,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the reader goroutine. It may only be called once; later calls do nothing.
func (d *LogDrain) Start(r io.Reader) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.run(r)
}

func (d *LogDrain) run(r io.Reader) {
	defer close(d.done)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			d.consume(line)
		}
		if err != nil {
			if !isNormalEndOfStream(err) {
				d.lock.Lock()
				d.err = err
				d.lock.Unlock()
			}
			return
		}
	}
}

func (d *LogDrain) consume(raw string) {
	line := strings.Trim(raw, " \r\n")
	if line == "" {
		return
	}
	d.lock.Lock()
	d.lines = append(d.lines, line)
	d.lock.Unlock()
	d.echo.Println(line)
	if d.marker != "" && strings.Contains(line, d.marker) {
		d.readyOnce.Do(func() {
			d.isReady.Store(true)
			close(d.ready)
		})
	}
}

func isNormalEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed)
}

// Ready returns a channel that is closed when the marker is first seen.
func (d *LogDrain) Ready() <-chan struct{} {
	return d.ready
}

// IsReady returns true once the marker has been seen.
func (d *LogDrain) IsReady() bool {
	return d.isReady.Load()
}

// Done returns a channel that is closed when the reader goroutine exits.
func (d *LogDrain) Done() <-chan struct{} {
	return d.done
}

// Err returns the read error that ended the drain, or nil if it ended normally or is still running.
func (d *LogDrain) Err() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.err
}

// Lines returns a copy of all lines captured so far.
func (d *LogDrain) Lines() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return helpers.CopyOf(d.lines)
}

// Tail returns a copy of the last n lines captured so far.
func (d *LogDrain) Tail(n int) []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return helpers.LastN(d.lines, n)
}

// String returns all captured lines joined by newlines.
func (d *LogDrain) String() string {
	return strings.Join(d.Lines(), "\n")
}
