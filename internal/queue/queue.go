// Package queue holds scan reports between scanning and syncing, so a volume
// can be scanned while offline and synced later.
package queue

import (
	"bytes"
	"fmt"
	"sync"

	"sl-go/internal/sl"
)

// reportQueue implements sl.ScanQueue using a pluggable queueStore for the
// storage mechanics. All shared queue logic lives here.
type reportQueue struct {
	store      queueStore
	idgen      sl.IDGenerator
	maxPending int
	mu         sync.Mutex
}

var _ sl.ScanQueue = (*reportQueue)(nil)

func (q *reportQueue) Enqueue(report *sl.ScanReport) error {
	var buf bytes.Buffer
	if err := sl.WriteReport(&buf, report); err != nil {
		return err
	}
	volume := report.VolumeName()

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.Items()
	if err != nil {
		return fmt.Errorf("reading queue: %w", err)
	}

	for _, item := range items {
		if item.VolumeName != volume {
			continue
		}
		if err := q.store.StoreReport(item.ID, buf.Bytes()); err != nil {
			return fmt.Errorf("replacing queued report: %w", err)
		}
		item.ScanDate = report.ScanInfo.ScanDate
		return q.store.SaveItems(items)
	}

	if q.maxPending > 0 && len(items) >= q.maxPending {
		return fmt.Errorf("queue full: %d reports pending", len(items))
	}

	item := &queueItem{ID: q.idgen.New(), VolumeName: volume, ScanDate: report.ScanInfo.ScanDate}
	if err := q.store.StoreReport(item.ID, buf.Bytes()); err != nil {
		return fmt.Errorf("storing report: %w", err)
	}
	if err := q.store.SaveItems(append(items, item)); err != nil {
		q.store.RemoveReport(item.ID)
		return fmt.Errorf("adding to queue: %w", err)
	}
	return nil
}

func (q *reportQueue) Next() (*sl.QueuedReport, *sl.ScanReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.Items()
	if err != nil {
		return nil, nil, fmt.Errorf("reading queue: %w", err)
	}
	if len(items) == 0 {
		return nil, nil, nil
	}

	first := items[0]
	data, err := q.store.LoadReport(first.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading queued report %s: %w", first.ID, err)
	}
	report, err := sl.ReadReport(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("queued report %s: %w", first.ID, err)
	}
	return toQueued(first), report, nil
}

func (q *reportQueue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.Items()
	if err != nil {
		return fmt.Errorf("reading queue: %w", err)
	}
	for i, item := range items {
		if item.ID != id {
			continue
		}
		if err := q.store.SaveItems(append(items[:i:i], items[i+1:]...)); err != nil {
			return fmt.Errorf("removing from queue: %w", err)
		}
		q.store.RemoveReport(id)
		return nil
	}
	return fmt.Errorf("no queued report with id %s", id)
}

func (q *reportQueue) List() ([]*sl.QueuedReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.Items()
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}
	out := make([]*sl.QueuedReport, len(items))
	for i, item := range items {
		out[i] = toQueued(item)
	}
	return out, nil
}

func (q *reportQueue) Count() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.store.Items()
	if err != nil {
		return 0, fmt.Errorf("reading queue: %w", err)
	}
	return len(items), nil
}

func toQueued(item *queueItem) *sl.QueuedReport {
	return &sl.QueuedReport{ID: item.ID, VolumeName: item.VolumeName, ScanDate: item.ScanDate}
}
