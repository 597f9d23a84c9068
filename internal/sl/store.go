package sl

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Relation names one of the four typed collections in the remote store.
type Relation string

const (
	RelVolumes            Relation = "volumes"
	RelStorageEntries     Relation = "storage_entries"
	RelAggregatedProjects Relation = "aggregated_projects"
	RelLogEntries         Relation = "log_entries"
)

// Relations lists every relation the store must provide.
var Relations = []Relation{RelVolumes, RelStorageEntries, RelAggregatedProjects, RelLogEntries}

// ErrNotFound is returned by Store.Get when no live record has the given id.
// Archived records are reported as not found.
var ErrNotFound = errors.New("sl: record not found")

// ErrDuplicateName is returned when one reconcile pass names a record twice.
var ErrDuplicateName = errors.New("sl: duplicate record name")

// Record is one stored document with typed properties.
type Record struct {
	ID         string
	Relation   Relation
	Properties Properties
}

// Name returns the record's title property.
func (r *Record) Name() string {
	return r.Properties.Text(PropName)
}

// Filter restricts a query. The zero Filter matches every live record.
// Equals compares against title, text or select values; Contains matches
// relation properties that include the given record id.
type Filter struct {
	Property string
	Equals   string
	Contains string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Property == ""
}

// Match reports whether rec satisfies the filter. Store backends that filter
// in process share it.
func (f Filter) Match(rec *Record) bool {
	if f.IsZero() {
		return true
	}
	v, ok := rec.Properties[f.Property]
	if !ok {
		return false
	}
	if f.Contains != "" {
		return slices.Contains(v.Items, f.Contains)
	}
	return v.Text == f.Equals
}

// Page is one page of query results.
type Page struct {
	Records    []*Record
	NextCursor string
	HasMore    bool
}

// Store is the remote structured store the engine reconciles against.
// Implementations must exclude archived records from Query and Get.
type Store interface {
	// Create inserts a record and returns its id.
	Create(ctx context.Context, rel Relation, props Properties) (string, error)

	// Patch overwrites the given properties of a record. Properties not
	// present in props are left unchanged.
	Patch(ctx context.Context, id string, props Properties) error

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Query returns one page of live records in rel matching filter.
	// An empty cursor starts at the first page.
	Query(ctx context.Context, rel Relation, filter Filter, cursor string) (*Page, error)

	// Archive soft-deletes a record. It is never physically removed.
	Archive(ctx context.Context, id string) error
}

// RemoteStoreError wraps any failure of a store call made by the engine.
// A pass that hits one is aborted; the next pass repairs the divergence.
type RemoteStoreError struct {
	Op       string
	Relation Relation
	ID       string
	Err      error
}

func (e *RemoteStoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("remote store %s %s/%s: %v", e.Op, e.Relation, e.ID, e.Err)
	}
	return fmt.Sprintf("remote store %s %s: %v", e.Op, e.Relation, e.Err)
}

func (e *RemoteStoreError) Unwrap() error {
	return e.Err
}

// IsRemoteStoreError reports whether err came from a store call.
func IsRemoteStoreError(err error) bool {
	var rse *RemoteStoreError
	return errors.As(err, &rse)
}
