package store

import (
	"context"
	"fmt"

	"sl-go/internal/config"
	"sl-go/internal/database"
	"sl-go/internal/sl"
	"sl-go/internal/store/notion"
)

// NewStoreFromConfig creates the Store selected by the store config type.
// The sqlite type keeps records in db. A notion store is bootstrapped before
// it is returned, so its database ids are ready to be cached.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, db *database.SQLiteDatabase, logger sl.Logger) (sl.Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(sl.UUIDGenerator{}, DefaultPageSize), nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite store requires a database")
		}
		return db.Records(), nil
	case "notion":
		if cfg.NotionToken == "" {
			return nil, fmt.Errorf("notion_token required for notion store")
		}
		parent, err := config.NotionPageID(cfg.NotionParentPage)
		if err != nil {
			return nil, fmt.Errorf("notion_parent_page: %w", err)
		}
		client := notion.NewClient(cfg.NotionBaseURL, cfg.NotionToken, cfg.Timeout.Duration, logger)
		s := notion.NewStore(client, parent, cfg.NotionDatabases, logger)
		if err := s.Bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("preparing notion databases: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
