package sl

// Scanner turns a mounted volume into a scan report.
type Scanner interface {
	// Scan walks root and returns its report, including disk usage.
	Scan(root string) (*ScanReport, error)
}
