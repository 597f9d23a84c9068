package fs

import (
	"bufio"
	"bytes"
	"os/exec"
	"strings"
)

// VolumeUUID asks diskutil for the volume UUID of path. It returns "" when
// the lookup fails.
func VolumeUUID(path string) string {
	out, err := exec.Command("diskutil", "info", path).Output()
	if err != nil {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && strings.TrimSpace(key) == "Volume UUID" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
