package sl

import "fmt"

// GetHistory returns the most recent sync operations, newest first.
func (s *SLService) GetHistory(limit int) ([]*SyncOperation, error) {
	ops, err := s.database.ListSyncOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	return ops, nil
}
