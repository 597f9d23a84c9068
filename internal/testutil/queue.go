package testutil

import (
	"sl-go/internal/queue"
	"sl-go/internal/sl"
)

// DefaultQueueMaxPending is the max pending count for test queues.
const DefaultQueueMaxPending = 8

// NewTestQueue creates a new in-memory scan queue for testing.
func NewTestQueue() sl.ScanQueue {
	return queue.NewMemoryQueue(NewStubIDGenerator(), DefaultQueueMaxPending)
}
