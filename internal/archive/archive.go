// Package archive stores a copy of every synced scan report, keyed by volume
// and report name.
package archive

import (
	"fmt"
	"strings"
)

// validateKey rejects volume and report names that would escape their
// directory or key prefix.
func validateKey(volume, name string) error {
	for _, part := range []string{volume, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("invalid report key %q/%q", volume, name)
		}
	}
	return nil
}
