package testutil

import (
	"fmt"
	"sync"

	"sl-go/internal/sl"
)

// StubScanner returns canned reports by scan root.
type StubScanner struct {
	mu      sync.Mutex
	reports map[string]*sl.ScanReport
	Scanned []string
}

func NewStubScanner() *StubScanner {
	return &StubScanner{reports: make(map[string]*sl.ScanReport)}
}

// SetReport makes Scan(root) return report.
func (s *StubScanner) SetReport(root string, report *sl.ScanReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[root] = report
}

func (s *StubScanner) Scan(root string) (*sl.ScanReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scanned = append(s.Scanned, root)
	report, ok := s.reports[root]
	if !ok {
		return nil, fmt.Errorf("no report for %s", root)
	}
	return report, nil
}

var _ sl.Scanner = (*StubScanner)(nil)
