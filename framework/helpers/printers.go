package helpers

import (
	"fmt"
	"io"
)

// MustFprintln writes to a console stream and panics if the write fails. Reporting output
// that cannot be written is not something the caller can recover from.
func MustFprintln(w io.Writer, a ...any) {
	if _, err := fmt.Fprintln(w, a...); err != nil {
		panic(err)
	}
}

// MustFprintf is the formatted version of MustFprintln.
func MustFprintf(w io.Writer, format string, a ...any) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		panic(err)
	}
}
