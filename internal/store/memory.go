// Package store provides Store backends and the factory that picks one from config.
package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"sl-go/internal/sl"
)

// DefaultPageSize matches the largest page the Notion API returns.
const DefaultPageSize = 100

type memoryRecord struct {
	record   *sl.Record
	archived bool
}

// MemoryStats counts the calls a MemoryStore served.
type MemoryStats struct {
	Creates  int
	Patches  int
	Gets     int
	Queries  int
	Archives int
}

// Writes returns the number of mutating calls.
func (s MemoryStats) Writes() int {
	return s.Creates + s.Patches + s.Archives
}

// MemoryStore is an in-process Store. Records are kept in insertion order and
// archived records stay in memory but are hidden from Get and Query.
type MemoryStore struct {
	mu       sync.Mutex
	idgen    sl.IDGenerator
	pageSize int
	records  map[string]*memoryRecord
	order    []string
	stats    MemoryStats
	failures map[string]error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(idgen sl.IDGenerator, pageSize int) *MemoryStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MemoryStore{
		idgen:    idgen,
		pageSize: pageSize,
		records:  make(map[string]*memoryRecord),
		failures: make(map[string]error),
	}
}

// FailNext makes the next call of op ("create", "patch", "get", "query",
// "archive") return err.
func (s *MemoryStore) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *MemoryStore) injected(op string) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

func (s *MemoryStore) Create(ctx context.Context, rel sl.Relation, props sl.Properties) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Creates++
	if err := s.injected("create"); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := s.idgen.New()
	s.records[id] = &memoryRecord{record: &sl.Record{ID: id, Relation: rel, Properties: props.Clone()}}
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemoryStore) Patch(ctx context.Context, id string, props sl.Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Patches++
	if err := s.injected("patch"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok || r.archived {
		return fmt.Errorf("patching %s: %w", id, sl.ErrNotFound)
	}
	r.record.Properties.Merge(props.Clone())
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*sl.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Gets++
	if err := s.injected("get"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := s.records[id]
	if !ok || r.archived {
		return nil, sl.ErrNotFound
	}
	return copyRecord(r.record), nil
}

func (s *MemoryStore) Query(ctx context.Context, rel sl.Relation, filter sl.Filter, cursor string) (*sl.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Queries++
	if err := s.injected("query"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		start = n
	}

	var matched []*sl.Record
	for _, id := range s.order {
		r := s.records[id]
		if r.archived || r.record.Relation != rel || !filter.Match(r.record) {
			continue
		}
		matched = append(matched, r.record)
	}

	page := &sl.Page{}
	end := min(start+s.pageSize, len(matched))
	for i := start; i < end; i++ {
		page.Records = append(page.Records, copyRecord(matched[i]))
	}
	if end < len(matched) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (s *MemoryStore) Archive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Archives++
	if err := s.injected("archive"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := s.records[id]
	if !ok || r.archived {
		return fmt.Errorf("archiving %s: %w", id, sl.ErrNotFound)
	}
	r.archived = true
	return nil
}

// Stats returns the call counters.
func (s *MemoryStore) Stats() MemoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ResetStats zeroes the call counters.
func (s *MemoryStore) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = MemoryStats{}
}

// IsArchived reports whether a record exists and was archived.
func (s *MemoryStore) IsArchived(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return ok && r.archived
}

// Live returns the live records of rel in insertion order.
func (s *MemoryStore) Live(rel sl.Relation) []*sl.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*sl.Record
	for _, id := range s.order {
		if r := s.records[id]; !r.archived && r.record.Relation == rel {
			out = append(out, copyRecord(r.record))
		}
	}
	return out
}

func copyRecord(r *sl.Record) *sl.Record {
	return &sl.Record{ID: r.ID, Relation: r.Relation, Properties: r.Properties.Clone()}
}

var _ sl.Store = (*MemoryStore)(nil)
