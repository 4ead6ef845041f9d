package helpers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCollectsMessages(t *testing.T) {
	var tr TestRecorder
	assert.Nil(t, tr.Err())

	tr.Errorf("server did not answer on port %d", 8080)
	tr.Errorf("ready marker missing")
	assert.Equal(t, []string{"server did not answer on port 8080", "ready marker missing"}, tr.Errors)
	assert.Equal(t, errors.New("server did not answer on port 8080, ready marker missing"), tr.Err())
	assert.False(t, tr.Terminated)
}

func TestRecorderFailNow(t *testing.T) {
	var plain TestRecorder
	plain.FailNow()
	assert.True(t, plain.Terminated)

	panicking := TestRecorder{PanicOnTerminate: true}
	assert.Panics(t, func() { panicking.FailNow() })
	assert.True(t, panicking.Terminated)
}

func TestRecorderStopsRequireHelpers(t *testing.T) {
	t.Run("RequireValue on an idle channel", func(t *testing.T) {
		tr := TestRecorder{PanicOnTerminate: true}
		ready := make(chan struct{})
		require.Panics(t, func() {
			RequireValueWithMessage(&tr, ready, time.Millisecond*10, "server %s never became ready", "cserver")
		})
		assert.Equal(t, []string{"server cserver never became ready"}, tr.Errors)
	})

	t.Run("RequireEventually that never succeeds", func(t *testing.T) {
		tr := TestRecorder{PanicOnTerminate: true}
		require.Panics(t, func() {
			RequireEventually(&tr, func() bool { return false }, time.Millisecond*20, time.Millisecond*5, "still running")
		})
		assert.Equal(t, []string{"still running"}, tr.Errors)
	})

	t.Run("AssertNever that sees a true value", func(t *testing.T) {
		var tr TestRecorder
		assert.False(t, AssertNever(&tr, func() bool { return true }, time.Millisecond*20, time.Millisecond*5, "exited early"))
		assert.Equal(t, []string{"exited early"}, tr.Errors)
		assert.False(t, tr.Terminated)
	})
}
