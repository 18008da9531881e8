//go:build !linux && !darwin

package catalog

import (
	"os"
	"time"
)

// accessTime falls back to the modification time on platforms where we
// don't know how to read the platform-specific stat structure.
func accessTime(fi os.FileInfo) (time.Time, bool) {
	return fi.ModTime(), false
}
