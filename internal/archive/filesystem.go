package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sl-go/internal/sl"
)

// FileSystemArchive stores reports as files in a directory structure:
//
//	<root>/
//	  <volume>/
//	    <name>     (one archived report)
type FileSystemArchive struct {
	name string
	root string
}

// NewFileSystemArchive creates a filesystem archive rooted at the given path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemArchive{name: name, root: root}, nil
}

func (a *FileSystemArchive) PutReport(volume, name string, r io.Reader, size int64) error {
	if err := validateKey(volume, name); err != nil {
		return err
	}
	dir := filepath.Join(a.root, volume)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create volume directory: %w", err)
	}
	return writeFile(filepath.Join(dir, name), r, size)
}

func (a *FileSystemArchive) GetReport(volume, name string, w io.Writer) error {
	if err := validateKey(volume, name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(a.root, volume, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("report not found: %s/%s", volume, name)
		}
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	return nil
}

func (a *FileSystemArchive) ListReports(volume string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.root, volume))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup verifies that the archive root is a writable directory.
func (a *FileSystemArchive) ValidateSetup() error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}

	tmp, err := os.CreateTemp(a.root, ".writable-*")
	if err != nil {
		return fmt.Errorf("archive root not writable: %w", err)
	}
	tmp.Close()
	os.Remove(tmp.Name())
	return nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemArchive implements sl.ReportArchive interface
var _ sl.ReportArchive = (*FileSystemArchive)(nil)
