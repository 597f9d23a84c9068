package sl

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StoreAccess wraps a Store with the per-call timeout, error wrapping and
// pagination every engine component shares.
type StoreAccess struct {
	store   Store
	timeout time.Duration
	logger  Logger
}

// NewStoreAccess creates a StoreAccess. A zero timeout leaves calls bounded
// only by the caller's context.
func NewStoreAccess(store Store, timeout time.Duration, logger Logger) *StoreAccess {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &StoreAccess{store: store, timeout: timeout, logger: logger}
}

func (a *StoreAccess) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *StoreAccess) Create(ctx context.Context, rel Relation, props Properties) (string, error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	id, err := a.store.Create(ctx, rel, props)
	if err != nil {
		return "", &RemoteStoreError{Op: "create", Relation: rel, Err: err}
	}
	return id, nil
}

func (a *StoreAccess) Patch(ctx context.Context, rel Relation, id string, props Properties) error {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	if err := a.store.Patch(ctx, id, props); err != nil {
		return &RemoteStoreError{Op: "patch", Relation: rel, ID: id, Err: err}
	}
	return nil
}

// Get returns (nil, nil) when the record does not exist or is archived.
func (a *StoreAccess) Get(ctx context.Context, rel Relation, id string) (*Record, error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	rec, err := a.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &RemoteStoreError{Op: "get", Relation: rel, ID: id, Err: err}
	}
	if rec.Relation != "" && rec.Relation != rel {
		return nil, nil
	}
	return rec, nil
}

func (a *StoreAccess) Archive(ctx context.Context, rel Relation, id string) error {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	if err := a.store.Archive(ctx, id); err != nil {
		return &RemoteStoreError{Op: "archive", Relation: rel, ID: id, Err: err}
	}
	return nil
}

// QueryAll follows cursors until the store reports no more pages.
func (a *StoreAccess) QueryAll(ctx context.Context, rel Relation, filter Filter) ([]*Record, error) {
	var (
		out    []*Record
		cursor string
	)
	for {
		page, err := a.queryPage(ctx, rel, filter, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if !page.HasMore || page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (a *StoreAccess) queryPage(ctx context.Context, rel Relation, filter Filter, cursor string) (*Page, error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	page, err := a.store.Query(ctx, rel, filter, cursor)
	if err != nil {
		return nil, &RemoteStoreError{Op: "query", Relation: rel, Err: err}
	}
	return page, nil
}

// FindByName returns the first live record in rel titled name, or (nil, nil).
func (a *StoreAccess) FindByName(ctx context.Context, rel Relation, name string) (*Record, error) {
	page, err := a.queryPage(ctx, rel, Filter{Property: PropName, Equals: name}, "")
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	return page.Records[0], nil
}

// Resolve finds a record by cached id, falling back to a title search when the
// id is empty or stale. Returns (nil, nil) when neither finds anything.
func (a *StoreAccess) Resolve(ctx context.Context, rel Relation, cachedID, name string) (*Record, error) {
	if cachedID != "" {
		rec, err := a.Get(ctx, rel, cachedID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
		a.logger.Warn("cached record id not found, searching by name", "relation", rel, "id", cachedID, "name", name)
	}
	return a.FindByName(ctx, rel, name)
}

// Action is what a desired-state function wants done with one named record.
type Action int

const (
	// ActionSkip leaves the stored record untouched.
	ActionSkip Action = iota
	// ActionUpsert creates the record or patches it to the given properties.
	ActionUpsert
	// ActionClear patches an existing record and does nothing when it is absent.
	ActionClear
	// ActionArchive archives an existing record.
	ActionArchive
)

// DecideFunc returns the desired properties and action for one name, given the
// stored record or nil when there is none.
type DecideFunc func(existing *Record) (Properties, Action)

// ArchiveOrphan is the orphan policy that archives every record a pass did
// not name.
func ArchiveOrphan(*Record) (Properties, Action) { return nil, ActionArchive }

// ApplyFunc reconciles one named record and returns its id, or "" when no
// record exists afterwards.
type ApplyFunc func(name string, decide DecideFunc) (string, error)

// Counts tallies what a reconcile pass did.
type Counts struct {
	Created   int
	Updated   int
	Unchanged int
	Archived  int
	Skipped   int
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Unchanged += other.Unchanged
	c.Archived += other.Archived
	c.Skipped += other.Skipped
}

// Changed reports whether the pass wrote anything.
func (c Counts) Changed() bool {
	return c.Created+c.Updated+c.Archived > 0
}

// ReconcileNamed brings the records of rel within scope in line with the names
// plan applies. Each name is looked up in the stored set and created, patched
// or left alone according to its decide function; a patch is only sent when the
// stored properties differ. Afterwards orphans decides the fate of stored
// records plan did not name, and of extra records sharing a name; a nil
// orphans leaves them alone. The first store failure aborts the pass, as does
// naming a record twice.
func (a *StoreAccess) ReconcileNamed(ctx context.Context, rel Relation, scope Filter, orphans DecideFunc, plan func(apply ApplyFunc) error) (Counts, error) {
	var counts Counts

	records, err := a.QueryAll(ctx, rel, scope)
	if err != nil {
		return counts, err
	}
	stored := make(map[string]*Record, len(records))
	for _, rec := range records {
		if _, ok := stored[rec.Name()]; !ok {
			stored[rec.Name()] = rec
		}
	}

	seen := make(map[string]bool)
	archived := make(map[string]bool)
	apply := func(name string, decide DecideFunc) (string, error) {
		existing := stored[name]
		if seen[name] {
			return "", fmt.Errorf("%w: %s %q", ErrDuplicateName, rel, name)
		}
		seen[name] = true

		props, action := decide(existing)
		switch action {
		case ActionSkip:
			counts.Skipped++
			if existing != nil {
				return existing.ID, nil
			}
			return "", nil
		case ActionClear, ActionArchive:
			if existing == nil {
				counts.Skipped++
				return "", nil
			}
			if action == ActionArchive {
				if err := a.archive(ctx, rel, existing, &counts); err != nil {
					return "", err
				}
				archived[existing.ID] = true
				delete(stored, name)
				return "", nil
			}
		}

		if existing == nil {
			props = props.Clone()
			props[PropName] = Title(name)
			id, err := a.Create(ctx, rel, props)
			if err != nil {
				return "", err
			}
			stored[name] = &Record{ID: id, Relation: rel, Properties: props}
			counts.Created++
			a.logger.Debug("record created", "relation", rel, "name", name, "id", id)
			return id, nil
		}

		if existing.Properties.Matches(props) {
			counts.Unchanged++
			return existing.ID, nil
		}
		if err := a.Patch(ctx, rel, existing.ID, props); err != nil {
			return "", err
		}
		existing.Properties = existing.Properties.Clone().Merge(props)
		counts.Updated++
		a.logger.Debug("record updated", "relation", rel, "name", name, "id", existing.ID)
		return existing.ID, nil
	}

	if err := plan(apply); err != nil {
		return counts, err
	}

	if orphans == nil {
		return counts, nil
	}
	for _, rec := range records {
		if seen[rec.Name()] && stored[rec.Name()] == rec {
			continue
		}
		if archived[rec.ID] {
			continue
		}
		props, action := orphans(rec)
		switch action {
		case ActionArchive:
			if err := a.archive(ctx, rel, rec, &counts); err != nil {
				return counts, err
			}
		case ActionUpsert, ActionClear:
			if rec.Properties.Matches(props) {
				continue
			}
			if err := a.Patch(ctx, rel, rec.ID, props); err != nil {
				return counts, err
			}
			rec.Properties = rec.Properties.Clone().Merge(props)
			counts.Updated++
			a.logger.Debug("orphan updated", "relation", rel, "name", rec.Name(), "id", rec.ID)
		}
	}
	return counts, nil
}

func (a *StoreAccess) archive(ctx context.Context, rel Relation, rec *Record, counts *Counts) error {
	if err := a.Archive(ctx, rel, rec.ID); err != nil {
		return err
	}
	counts.Archived++
	a.logger.Debug("record archived", "relation", rel, "name", rec.Name(), "id", rec.ID)
	return nil
}
