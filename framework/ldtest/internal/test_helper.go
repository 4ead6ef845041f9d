// Package internal contains test helpers for ldtest.
package internal

// RunAction is used only in unit tests of stacktrace filtering. It lives in a separate package
// so that it shows up in a stacktrace as a frame that is not part of ldtest.
func RunAction(action func()) {
	action()
}
