package sl

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time. Analysis passes without a scan report use it
// as their scan date.
type Clock interface {
	Now() time.Time
}

// RealClock returns the wall clock time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces record ids for stores that assign their own.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
