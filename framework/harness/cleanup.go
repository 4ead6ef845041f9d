package harness

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// removeGlobs deletes every file matching any of the patterns. Failures are returned as warnings
// rather than errors; a missing file is not a failure.
func removeGlobs(patterns []string) []CleanupWarning {
	var warnings []CleanupWarning
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			warnings = append(warnings, CleanupWarning{Path: pattern, Err: err})
			continue
		}
		for _, path := range matches {
			if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				warnings = append(warnings, CleanupWarning{Path: path, Err: err})
			}
		}
	}
	return warnings
}

// emptyDir deletes the contents of dir but not dir itself, creating it if it does not exist.
func emptyDir(dir string) []CleanupWarning {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return []CleanupWarning{{Path: dir, Err: err}}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []CleanupWarning{{Path: dir, Err: err}}
	}
	var warnings []CleanupWarning
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			warnings = append(warnings, CleanupWarning{Path: path, Err: err})
		}
	}
	return warnings
}

func removeFileIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
