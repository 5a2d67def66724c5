// Package filesystem derives destination filenames, sanitizes them,
// resolves collisions, categorizes completed downloads, and preflights
// available disk space before a stream begins.
package filesystem

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// diskSafetyBuffer is held back beyond the expected download size so a
// concurrent write from something else on the volume doesn't cause the
// stream to fail mid-flight.
const diskSafetyBuffer = 100 * 1024 * 1024

// CheckSpace verifies the volume backing dir has enough free space for
// expectedSize plus a safety buffer. When expectedSize is not positive
// (net/http reports an unknown Content-Length as -1) the check is
// skipped, since the streaming contract tolerates unknown length.
func CheckSpace(dir string, expectedSize int64) error {
	if expectedSize <= 0 {
		return nil
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}
	if int64(usage.Free) < expectedSize+diskSafetyBuffer {
		return fmt.Errorf("insufficient disk space: need %d bytes (plus safety buffer), have %d free", expectedSize, usage.Free)
	}
	return nil
}

// DiskUsage reports free and total bytes on the volume backing dir.
func DiskUsage(dir string) (free, total uint64, err error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("disk usage: %w", err)
	}
	return usage.Free, usage.Total, nil
}
