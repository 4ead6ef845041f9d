package harness

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
)

func TestLogDrainCapturesTrimmedNonEmptyLinesInOrder(t *testing.T) {
	echo := &framework.CapturingLogger{}
	d := NewLogDrain("Cserver ready", echo)
	d.Start(strings.NewReader("  first \r\n\n\r\nsecond\nCserver ready on 8080\nlast line without newline"))
	helpers.RequireValue(t, d.Done(), time.Second)

	expected := []string{"first", "second", "Cserver ready on 8080", "last line without newline"}
	assert.Equal(t, expected, d.Lines())
	assert.Equal(t, strings.Join(expected, "\n"), d.String())
	assert.True(t, d.IsReady())
	assert.NoError(t, d.Err())

	var echoed []string
	for _, m := range echo.Output() {
		echoed = append(echoed, m.Message)
	}
	assert.Equal(t, expected, echoed)
}

func TestLogDrainSignalsReadinessOnce(t *testing.T) {
	r, w := io.Pipe()
	d := NewLogDrain("ready", nil)
	d.Start(r)

	_, _ = io.WriteString(w, "starting\n")
	assert.False(t, helpers.TryReceive(d.Ready(), time.Millisecond*50).IsDefined())
	helpers.AssertNever(t, d.IsReady, time.Millisecond*50, time.Millisecond*10, "ready before the marker was written")

	_, _ = io.WriteString(w, "now ready\nready again\n")
	helpers.RequireValue(t, d.Ready(), time.Second)
	assert.True(t, d.IsReady())

	require.NoError(t, w.Close())
	helpers.RequireValue(t, d.Done(), time.Second)
	assert.Equal(t, []string{"starting", "now ready", "ready again"}, d.Lines())
}

func TestLogDrainNeverReadyWithoutMarker(t *testing.T) {
	d := NewLogDrain("Cserver ready", nil)
	d.Start(strings.NewReader("Cserver starting\nCserver read\n"))
	helpers.RequireValue(t, d.Done(), time.Second)
	assert.False(t, d.IsReady())
	assert.False(t, helpers.TryReceive(d.Ready(), time.Millisecond).IsDefined())
}

func TestLogDrainDoesNotSplitLongLines(t *testing.T) {
	long := strings.Repeat("abcdefgh", 256*1024)
	d := NewLogDrain("x", nil)
	d.Start(strings.NewReader(long + "\nshort\n"))
	helpers.RequireValue(t, d.Done(), time.Second*5)
	lines := d.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, long, lines[0])
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestLogDrainReportsUnexpectedReadError(t *testing.T) {
	boom := errors.New("boom")
	d := NewLogDrain("ready", nil)
	d.Start(&failingReader{data: []byte("partial\n"), err: boom})
	helpers.RequireValue(t, d.Done(), time.Second)
	assert.Equal(t, boom, d.Err())
	assert.Equal(t, []string{"partial"}, d.Lines())
}

func TestLogDrainLinesIsASnapshot(t *testing.T) {
	d := NewLogDrain("", nil)
	d.Start(strings.NewReader("a\nb\n"))
	helpers.RequireValue(t, d.Done(), time.Second)
	lines := d.Lines()
	lines[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, d.Lines())
	assert.Equal(t, []string{"b"}, d.Tail(1))
}

func TestLogDrainStartTwiceIsIgnored(t *testing.T) {
	d := NewLogDrain("", nil)
	d.Start(strings.NewReader("a\n"))
	d.Start(strings.NewReader("b\n"))
	helpers.RequireValue(t, d.Done(), time.Second)
	assert.Equal(t, []string{"a"}, d.Lines())
}
