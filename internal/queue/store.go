package queue

// queueItem is one entry of the queue index.
type queueItem struct {
	ID         string `json:"id"`
	VolumeName string `json:"volume_name"`
	ScanDate   string `json:"scan_date"`
}

// queueStore abstracts the storage mechanics for a report queue: an ordered
// index plus one encoded report per entry. Concurrency is managed by the
// caller (reportQueue.mu), so stores do not need to be safe for concurrent use.
type queueStore interface {
	// Items returns the index, oldest first.
	Items() ([]*queueItem, error)

	// SaveItems replaces the index.
	SaveItems(items []*queueItem) error

	// StoreReport writes the encoded report for id, replacing any previous one.
	StoreReport(id string, data []byte) error

	// LoadReport returns the encoded report for id.
	LoadReport(id string) ([]byte, error)

	// RemoveReport deletes the encoded report for id (best-effort).
	RemoveReport(id string)
}
