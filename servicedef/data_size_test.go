package servicedef

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDataSize(t *testing.T) {
	for input, expected := range map[string]string{
		"1M":   "1.0MB",
		"12M":  "12.0MB",
		"512k": "512.0KB",
		"2GB":  "2.0GB",
		"1.5M": "1.5MB",
		" 1M ": "1.0MB",
		"":     "",
		"lots": "lots",
		"-1M":  "-1M",
	} {
		assert.Equal(t, expected, FormatDataSize(input), "input %q", input)
	}
}
