package sl

import (
	"database/sql"
	"time"
)

// VolumeState is what the local database remembers about a volume between runs.
type VolumeState struct {
	Name       string
	RecordID   string // cached remote store id of the volume record
	LastScanAt sql.NullTime
	Mounted    bool // mounted during the previous auto-scan run
}

// SyncOperation is one recorded CLI mutation.
type SyncOperation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Message    string
}

// Database is the local state store. Lookups return (nil, nil) when nothing matches.
type Database interface {
	// Volume state

	// FindVolumeState returns the state of a volume by name.
	FindVolumeState(name string) (*VolumeState, error)

	// SaveVolumeState inserts or replaces the cached record id and last scan time.
	SaveVolumeState(state *VolumeState) error

	// ListVolumeStates returns every known volume ordered by name.
	ListVolumeStates() ([]*VolumeState, error)

	// SetMountedVolumes marks exactly the named volumes as mounted.
	SetMountedVolumes(names []string) error

	// Sync operations

	// CreateSyncOperation records the start of an operation with status "running".
	CreateSyncOperation(operation, parameters string, startedAt time.Time) (*SyncOperation, error)

	// FinishSyncOperation records the end of an operation.
	FinishSyncOperation(id int64, finishedAt time.Time, status, message string) error

	// ListSyncOperations returns the most recent operations, newest first.
	ListSyncOperations(limit int) ([]*SyncOperation, error)

	// Close closes the database connection.
	Close() error
}
