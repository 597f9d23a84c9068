package testutil

import (
	"sl-go/internal/archive"
)

// NewTestArchive creates a new in-memory report archive for testing.
func NewTestArchive() *archive.MemoryArchive {
	return archive.NewMemoryArchive("test-archive")
}
