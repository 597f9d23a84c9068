package archive

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"

	"sl-go/internal/sl"
)

// MemoryArchive is an in-memory implementation of the ReportArchive interface.
// It is useful for testing and safe for concurrent use.
type MemoryArchive struct {
	name    string
	reports map[string]map[string][]byte // volume -> name -> data
	mu      sync.RWMutex
}

// NewMemoryArchive creates a new in-memory archive with the given name.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{
		name:    name,
		reports: make(map[string]map[string][]byte),
	}
}

func (m *MemoryArchive) PutReport(volume, name string, r io.Reader, size int64) error {
	if err := validateKey(volume, name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reports[volume] == nil {
		m.reports[volume] = make(map[string][]byte)
	}
	m.reports[volume][name] = data
	return nil
}

func (m *MemoryArchive) GetReport(volume, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.reports[volume][name]
	if !ok {
		return fmt.Errorf("report not found: %s/%s", volume, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (m *MemoryArchive) ListReports(volume string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.reports[volume]))
	for name := range m.reports[volume] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// ValidateSetup always succeeds for the in-memory archive.
func (m *MemoryArchive) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryArchive implements sl.ReportArchive interface
var _ sl.ReportArchive = (*MemoryArchive)(nil)
