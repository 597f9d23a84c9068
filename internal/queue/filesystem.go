package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sl-go/internal/sl"
)

// fileSystemStore implements queueStore on disk.
//
// Directory structure:
//
//	<queue_dir>/
//	  queue.json       (ordered index of queued reports)
//	  reports/
//	    <id>.json      (encoded scan report)
type fileSystemStore struct {
	queueDir   string
	reportsDir string
}

func (f *fileSystemStore) indexPath() string {
	return filepath.Join(f.queueDir, "queue.json")
}

func (f *fileSystemStore) reportPath(id string) string {
	return filepath.Join(f.reportsDir, id+".json")
}

func (f *fileSystemStore) Items() ([]*queueItem, error) {
	data, err := os.ReadFile(f.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []*queueItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding queue index: %w", err)
	}
	return items, nil
}

func (f *fileSystemStore) SaveItems(items []*queueItem) error {
	if items == nil {
		items = []*queueItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue index: %w", err)
	}
	return writeAtomic(f.indexPath(), data)
}

func (f *fileSystemStore) StoreReport(id string, data []byte) error {
	return writeAtomic(f.reportPath(id), data)
}

func (f *fileSystemStore) LoadReport(id string) ([]byte, error) {
	return os.ReadFile(f.reportPath(id))
}

func (f *fileSystemStore) RemoveReport(id string) {
	os.Remove(f.reportPath(id))
}

// writeAtomic writes data to a temp file in the same directory and renames
// it over path, so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// NewFileSystemQueue creates a queue persisted under queueDir.
// maxPending limits the number of queued reports; zero means unlimited.
func NewFileSystemQueue(queueDir string, idgen sl.IDGenerator, maxPending int) (sl.ScanQueue, error) {
	reportsDir := filepath.Join(queueDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	return &reportQueue{
		store:      &fileSystemStore{queueDir: queueDir, reportsDir: reportsDir},
		idgen:      idgen,
		maxPending: maxPending,
	}, nil
}
