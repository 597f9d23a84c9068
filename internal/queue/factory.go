package queue

import (
	"fmt"

	"sl-go/internal/config"
	"sl-go/internal/sl"
)

// NewQueueFromConfig creates a ScanQueue implementation based on the config type.
func NewQueueFromConfig(cfg config.QueueConfig) (sl.ScanQueue, error) {
	maxPending := cfg.MaxPending
	if maxPending <= 0 {
		maxPending = config.DefaultMaxPending
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryQueue(sl.UUIDGenerator{}, maxPending), nil
	case "filesystem":
		if cfg.QueueDir == "" {
			return nil, fmt.Errorf("filesystem queue requires queue_dir to be set")
		}
		return NewFileSystemQueue(cfg.QueueDir, sl.UUIDGenerator{}, maxPending)
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
