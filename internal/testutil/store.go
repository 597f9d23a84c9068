package testutil

import (
	"sl-go/internal/store"
)

// TestPageSize is small so that tests exercise pagination.
const TestPageSize = 3

// NewTestStore creates an empty in-memory store with sequential ids
// ("id-1", "id-2", ...) and a small page size.
func NewTestStore() *store.MemoryStore {
	return store.NewMemoryStore(NewStubIDGenerator(), TestPageSize)
}
