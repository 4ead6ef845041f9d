package servicedef

import (
	"fmt"
	"strings"

	"code.cloudfoundry.org/bytefmt"
)

// FormatDataSize converts a size setting such as "1M" or "512K" into the form the server reports
// it in, such as "1.0MB". Values it cannot parse are returned unchanged.
func FormatDataSize(setting string) string {
	s := strings.TrimSpace(setting)
	if strings.HasPrefix(s, "-") {
		return setting
	}
	n, err := bytefmt.ToBytes(s)
	if err != nil {
		return setting
	}
	size := float64(n)
	switch {
	case n >= bytefmt.GIGABYTE:
		return fmt.Sprintf("%.1fGB", size/bytefmt.GIGABYTE)
	case n >= bytefmt.MEGABYTE:
		return fmt.Sprintf("%.1fMB", size/bytefmt.MEGABYTE)
	case n >= bytefmt.KILOBYTE:
		return fmt.Sprintf("%.1fKB", size/bytefmt.KILOBYTE)
	default:
		return fmt.Sprintf("%.1fB", size)
	}
}
