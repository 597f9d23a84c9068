//go:build unix

package fs

import (
	"fmt"

	"golang.org/x/sys/unix"

	"sl-go/internal/sl"
)

// DiskUsage returns the capacity and used bytes of the filesystem holding path.
func DiskUsage(path string) (sl.DiskInfo, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return sl.DiskInfo{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := int64(st.Bsize)
	total := int64(st.Blocks) * bsize
	free := int64(st.Bfree) * bsize
	return sl.DiskInfo{CapacityBytes: total, UsedBytes: total - free}, nil
}
