package sl

import "io"

// ReportArchive keeps a copy of every synced scan report.
// Names are unique per volume; storing an existing name overwrites it.
type ReportArchive interface {
	// PutReport stores size bytes read from r under volume/name.
	PutReport(volume, name string, r io.Reader, size int64) error

	// GetReport writes the stored report to w.
	GetReport(volume, name string, w io.Writer) error

	// ListReports returns the report names stored for a volume, sorted.
	ListReports(volume string) ([]string, error)

	// ValidateSetup verifies that the archive is reachable and writable.
	ValidateSetup() error
}
