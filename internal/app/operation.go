package app

import "sl-go/internal/sl"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SyncOperation tracks a CLI command that may change the store or the local
// state. It lives in memory with ID=0 until the command first mutates
// something; only then is it recorded in the database.
type SyncOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	Message    string
}

// NewSyncOperation creates a new in-memory operation that succeeds unless
// Fail is called.
func NewSyncOperation(operation, parameters string) *SyncOperation {
	return &SyncOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *SyncOperation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation failed with err as its message. A nil err is ignored.
// Remote store failures are prefixed so the history shows where a pass stopped.
func (op *SyncOperation) Fail(err error) {
	if err == nil {
		return
	}
	op.Status = StatusError
	op.Message = err.Error()
	if sl.IsRemoteStoreError(err) {
		op.Message = "store: " + op.Message
	}
}
