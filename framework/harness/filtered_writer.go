package harness

import (
	"io"
	"regexp"
)

// filteredWriter drops any write whose data matches one of the exclude patterns. The echo
// logger writes one line per call, so this filters server output line by line.
type filteredWriter struct {
	writer       io.Writer
	excludeRegex []*regexp.Regexp
}

func newFilteredWriter(writer io.Writer, excludeRegex []*regexp.Regexp) io.Writer {
	if len(excludeRegex) == 0 {
		return writer
	}
	return &filteredWriter{writer, excludeRegex}
}

func (f *filteredWriter) Write(data []byte) (int, error) {
	for _, r := range f.excludeRegex {
		if r.Match(data) {
			return len(data), nil
		}
	}
	return f.writer.Write(data)
}
