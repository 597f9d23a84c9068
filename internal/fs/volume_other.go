//go:build !darwin

package fs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// VolumeUUID resolves the filesystem UUID of the block device mounted at path
// through /dev/disk/by-uuid. It returns "" when path is not a mount point or
// the lookup fails.
func VolumeUUID(path string) string {
	device := mountDevice(path)
	if device == "" {
		return ""
	}
	entries, err := os.ReadDir("/dev/disk/by-uuid")
	if err != nil {
		return ""
	}
	for _, e := range entries {
		target, err := filepath.EvalSymlinks(filepath.Join("/dev/disk/by-uuid", e.Name()))
		if err == nil && target == device {
			return e.Name()
		}
	}
	return ""
}

// mountDevice returns the device mounted exactly at path according to /proc/self/mounts.
func mountDevice(path string) string {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[1] != path {
			continue
		}
		if device, err := filepath.EvalSymlinks(fields[0]); err == nil {
			return device
		}
		return fields[0]
	}
	return ""
}
