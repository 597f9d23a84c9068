package queue

import (
	"fmt"
	"slices"

	"sl-go/internal/sl"
)

// memoryStore implements queueStore in memory.
type memoryStore struct {
	items   []*queueItem
	reports map[string][]byte
}

func (m *memoryStore) Items() ([]*queueItem, error) {
	out := make([]*queueItem, len(m.items))
	for i, item := range m.items {
		copied := *item
		out[i] = &copied
	}
	return out, nil
}

func (m *memoryStore) SaveItems(items []*queueItem) error {
	m.items = slices.Clone(items)
	return nil
}

func (m *memoryStore) StoreReport(id string, data []byte) error {
	m.reports[id] = slices.Clone(data)
	return nil
}

func (m *memoryStore) LoadReport(id string) ([]byte, error) {
	data, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s not found", id)
	}
	return data, nil
}

func (m *memoryStore) RemoveReport(id string) {
	delete(m.reports, id)
}

// NewMemoryQueue creates an in-memory queue, useful for testing.
// maxPending limits the number of queued reports; zero means unlimited.
func NewMemoryQueue(idgen sl.IDGenerator, maxPending int) sl.ScanQueue {
	return &reportQueue{
		store:      &memoryStore{reports: make(map[string][]byte)},
		idgen:      idgen,
		maxPending: maxPending,
	}
}
