package sl

// QueuedReport is one scan report waiting to be synced.
type QueuedReport struct {
	ID         string
	VolumeName string
	ScanDate   string
}

// ScanQueue holds scan reports until a single worker syncs them, one volume
// at a time, oldest first.
type ScanQueue interface {
	// Enqueue adds a report. A queued report for the same volume is replaced
	// in place, keeping its position.
	Enqueue(report *ScanReport) error

	// Next returns the oldest queued report, or (nil, nil) when empty.
	Next() (*QueuedReport, *ScanReport, error)

	// Remove drops a report after it was synced.
	Remove(id string) error

	// List returns the queued reports, oldest first.
	List() ([]*QueuedReport, error)

	// Count returns the number of queued reports.
	Count() (int, error)
}
