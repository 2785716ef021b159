package utils

import (
	"os"
	"time"
)

// IsFileStable reports whether the file at path has a nonzero size that does not
// change across two samples taken delay apart. The encoder writes segment and
// playlist files incrementally; a file must never be read for publication while
// a sample pair disagrees, or viewers see corrupt media.
func IsFileStable(path string, delay time.Duration) bool {
	first, err := os.Stat(path)
	if err != nil {
		return false
	}
	time.Sleep(delay)
	second, err := os.Stat(path)
	if err != nil {
		return false
	}
	return first.Size() == second.Size() && first.Size() > 0
}
