package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-volume file listing extra folders to leave out of scans.
const IgnoreFileName = ".slignore"

// defaultIgnorePatterns name operating system folders found on removable volumes.
var defaultIgnorePatterns = []string{"$RECYCLE.BIN", "System Volume Information", "lost+found"}

type ignorePattern struct {
	pattern   string
	matchPath bool // match the path relative to the volume root instead of the folder name
}

// IgnoreMatcher decides which folders a scan leaves out.
// Patterns without '/' match the folder name; patterns with '/' match the
// path relative to the volume root.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher builds a matcher from the default patterns plus rawPatterns.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	return &IgnoreMatcher{patterns: parsePatterns(append(append([]string{}, defaultIgnorePatterns...), rawPatterns...))}
}

// With returns a matcher that also applies extra patterns.
func (m *IgnoreMatcher) With(extra []string) *IgnoreMatcher {
	return &IgnoreMatcher{patterns: append(append([]ignorePattern{}, m.patterns...), parsePatterns(extra)...)}
}

func parsePatterns(raw []string) []ignorePattern {
	var patterns []ignorePattern
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   line,
			matchPath: strings.Contains(line, "/"),
		})
	}
	return patterns
}

// Match reports whether the folder at relativePath should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	normalized := filepath.ToSlash(relativePath)
	name := filepath.Base(relativePath)

	for _, p := range m.patterns {
		target := name
		if p.matchPath {
			target = normalized
		}
		matched, err := filepath.Match(p.pattern, target)
		if err != nil {
			continue
		}
		if matched || strings.EqualFold(p.pattern, target) {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file. A missing file yields no patterns.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
