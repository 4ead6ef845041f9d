package helpers

import (
	"time"
)

// PollForSpecificResultValue calls testFn repeatedly at intervals until the expected value is seen or the timeout
// elapses.
// Returns true if the value was matched, false if timed out.
func PollForSpecificResultValue[V comparable](
	testFn func() V,
	timeout time.Duration,
	interval time.Duration,
	expectedValue V,
) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			return false
		case <-ticker.C:
			if testFn() == expectedValue {
				return true
			}
		}
	}
}

// PollAttempts calls testFn at most attempts times, waiting interval before each call, and stops as
// soon as it returns true or the abort channel is closed. It returns the number of calls made and
// whether testFn succeeded. A nil abort channel never fires.
//
// Unlike PollForSpecificResultValue, the upper bound is a number of checks rather than a wall-clock
// deadline, so a slow testFn extends the total wait instead of shortening the number of checks.
func PollAttempts(
	testFn func() bool,
	attempts int,
	interval time.Duration,
	abort <-chan struct{},
) (int, bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 1; n <= attempts; n++ {
		select {
		case <-ticker.C:
		case <-abort:
			return n - 1, testFn()
		}
		if testFn() {
			return n, true
		}
	}
	return attempts, false
}

// AssertEventually is equivalent to assert.Eventually from stretchr/testify/assert, except that it does not use a
// separate goroutine so it does not cause problems with our test framework. It calls testFn
// repeatedly at intervals until it gets a true value; if the timeout elapses, the test fails.
func AssertEventually(
	t TestContext,
	testFn func() bool,
	timeout time.Duration,
	interval time.Duration,
	failureMsgFormat string,
	failureMsgArgs ...interface{},
) bool {
	if PollForSpecificResultValue(testFn, timeout, interval, true) {
		return true
	}
	t.Errorf(failureMsgFormat, failureMsgArgs...)
	return false
}

// RequireEventually is the same as AssertEventually, except that if the timeout elapses the
// test fails and immediately exits.
func RequireEventually(
	t TestContext,
	testFn func() bool,
	timeout time.Duration,
	interval time.Duration,
	failureMsgFormat string,
	failureMsgArgs ...interface{},
) {
	if !AssertEventually(t, testFn, timeout, interval, failureMsgFormat, failureMsgArgs...) {
		t.FailNow()
	}
}

// AssertNever calls testFn repeatedly at intervals until either the timeout elapses or it
// receives a true value; if it receives a true value, the test fails.
func AssertNever(
	t TestContext,
	testFn func() bool,
	timeout time.Duration,
	interval time.Duration,
	failureMsgFormat string,
	failureMsgArgs ...interface{},
) bool {
	if PollForSpecificResultValue(testFn, timeout, interval, true) {
		t.Errorf(failureMsgFormat, failureMsgArgs...)
		return false
	}
	return true
}
