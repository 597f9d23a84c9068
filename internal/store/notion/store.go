package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sl-go/internal/sl"
)

// pageSize is the largest page the query endpoint returns.
const pageSize = 100

// DatabaseTitles are the titles the databases are created with and
// discovered by under the parent page.
var DatabaseTitles = map[sl.Relation]string{
	sl.RelVolumes:            "Volumes",
	sl.RelStorageEntries:     "Storage Entries",
	sl.RelAggregatedProjects: "Projects",
	sl.RelLogEntries:         "Storage Log",
}

// Store maps relations onto Notion databases and records onto pages.
type Store struct {
	client       *Client
	parentPageID string
	databases    map[sl.Relation]string
	logger       sl.Logger
}

var _ sl.Store = (*Store)(nil)

// NewStore creates a store under parentPageID. cached holds database ids by
// relation name from an earlier Bootstrap; stale entries are replaced.
func NewStore(client *Client, parentPageID string, cached map[string]string, logger sl.Logger) *Store {
	s := &Store{
		client:       client,
		parentPageID: normalizeID(parentPageID),
		databases:    make(map[sl.Relation]string),
		logger:       logger,
	}
	for _, rel := range sl.Relations {
		if id := cached[string(rel)]; id != "" {
			s.databases[rel] = id
		}
	}
	return s
}

// DatabaseIDs returns the database id of every known relation, keyed by
// relation name, for caching in the config file.
func (s *Store) DatabaseIDs() map[string]string {
	out := make(map[string]string, len(s.databases))
	for rel, id := range s.databases {
		out[string(rel)] = id
	}
	return out
}

// Bootstrap makes sure one database per relation exists under the parent page
// and carries the full property schema. Cached ids are checked first, then
// existing databases are found by title, and only then are new ones created.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, rel := range sl.Relations {
		id, ok := s.databases[rel]
		if !ok {
			continue
		}
		valid, err := s.databaseExists(ctx, id)
		if err != nil {
			return fmt.Errorf("checking %s database: %w", rel, err)
		}
		if !valid {
			s.logger.Warn("cached database id is stale", "relation", rel, "id", id)
			delete(s.databases, rel)
		}
	}

	if len(s.databases) < len(sl.Relations) {
		found, err := s.findDatabases(ctx)
		if err != nil {
			return err
		}
		for rel, id := range found {
			if _, ok := s.databases[rel]; !ok {
				s.databases[rel] = id
			}
		}
	}

	// Relations are ordered so every relation target exists before it is referenced.
	for _, rel := range sl.Relations {
		if _, ok := s.databases[rel]; ok {
			continue
		}
		id, err := s.createDatabase(ctx, rel)
		if err != nil {
			return fmt.Errorf("creating %s database: %w", rel, err)
		}
		s.logger.Info("database created", "relation", rel, "id", id)
		s.databases[rel] = id
	}

	for _, rel := range sl.Relations {
		if err := s.migrateSchema(ctx, rel); err != nil {
			return fmt.Errorf("updating %s schema: %w", rel, err)
		}
	}
	return nil
}

func (s *Store) databaseExists(ctx context.Context, id string) (bool, error) {
	var db database
	err := s.client.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(id), nil, &db)
	if isMissing(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !db.Archived, nil
}

// findDatabases searches the workspace for databases whose parent is the
// configured page and whose title names a relation.
func (s *Store) findDatabases(ctx context.Context) (map[sl.Relation]string, error) {
	byTitle := make(map[string]sl.Relation, len(DatabaseTitles))
	for rel, title := range DatabaseTitles {
		byTitle[title] = rel
	}

	found := make(map[sl.Relation]string)
	cursor := ""
	for {
		body := map[string]any{
			"filter":    map[string]any{"property": "object", "value": "database"},
			"page_size": pageSize,
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		var resp searchResponse
		if err := s.client.do(ctx, http.MethodPost, "/search", body, &resp); err != nil {
			return nil, fmt.Errorf("searching databases: %w", err)
		}
		for _, db := range resp.Results {
			if db.Archived || normalizeID(db.Parent.PageID) != s.parentPageID {
				continue
			}
			rel, ok := byTitle[plainText(db.Title)]
			if !ok {
				continue
			}
			if _, seen := found[rel]; !seen {
				found[rel] = db.ID
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return found, nil
		}
		cursor = resp.NextCursor
	}
}

func (s *Store) createDatabase(ctx context.Context, rel sl.Relation) (string, error) {
	body := map[string]any{
		"parent":     map[string]any{"type": "page_id", "page_id": s.parentPageID},
		"title":      textContent(DatabaseTitles[rel]),
		"properties": propertySchema(rel, s.databases),
	}
	var db database
	if err := s.client.do(ctx, http.MethodPost, "/databases", body, &db); err != nil {
		return "", err
	}
	return db.ID, nil
}

// migrateSchema declares every property of rel on its database. Notion keeps
// existing properties and adds missing ones, so this also adds the
// self-referencing relations a fresh database could not declare.
func (s *Store) migrateSchema(ctx context.Context, rel sl.Relation) error {
	body := map[string]any{"properties": propertySchema(rel, s.databases)}
	return s.client.do(ctx, http.MethodPatch, "/databases/"+url.PathEscape(s.databases[rel]), body, nil)
}

func (s *Store) databaseID(rel sl.Relation) (string, error) {
	id, ok := s.databases[rel]
	if !ok {
		return "", fmt.Errorf("no database for %s; run bootstrap first", rel)
	}
	return id, nil
}

func (s *Store) relationOf(databaseID string) sl.Relation {
	want := normalizeID(databaseID)
	for rel, id := range s.databases {
		if normalizeID(id) == want {
			return rel
		}
	}
	return ""
}

func (s *Store) Create(ctx context.Context, rel sl.Relation, props sl.Properties) (string, error) {
	dbID, err := s.databaseID(rel)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"parent":     map[string]any{"database_id": dbID},
		"properties": encodeProperties(props),
	}
	var created page
	if err := s.client.do(ctx, http.MethodPost, "/pages", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *Store) Patch(ctx context.Context, id string, props sl.Properties) error {
	body := map[string]any{"properties": encodeProperties(props)}
	err := s.client.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), body, nil)
	if isMissing(err) {
		return sl.ErrNotFound
	}
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*sl.Record, error) {
	var p page
	err := s.client.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(id), nil, &p)
	if isMissing(err) {
		return nil, sl.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Archived {
		return nil, sl.ErrNotFound
	}
	return s.record(p, s.relationOf(p.Parent.DatabaseID)), nil
}

func (s *Store) Query(ctx context.Context, rel sl.Relation, filter sl.Filter, cursor string) (*sl.Page, error) {
	dbID, err := s.databaseID(rel)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"page_size": pageSize}
	if !filter.IsZero() {
		f, err := filterBody(rel, filter)
		if err != nil {
			return nil, err
		}
		body["filter"] = f
	}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	var resp queryResponse
	if err := s.client.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(dbID)+"/query", body, &resp); err != nil {
		return nil, err
	}
	out := &sl.Page{NextCursor: resp.NextCursor, HasMore: resp.HasMore}
	for _, p := range resp.Results {
		if p.Archived {
			continue
		}
		out.Records = append(out.Records, s.record(p, rel))
	}
	return out, nil
}

func (s *Store) Archive(ctx context.Context, id string) error {
	err := s.client.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), map[string]any{"archived": true}, nil)
	if isMissing(err) {
		return sl.ErrNotFound
	}
	return err
}

func (s *Store) record(p page, rel sl.Relation) *sl.Record {
	return &sl.Record{ID: p.ID, Relation: rel, Properties: decodeProperties(p.Properties)}
}

// isMissing reports whether err is the API's answer for an unknown or
// inaccessible object.
func isMissing(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusNotFound || apiErr.Code == "object_not_found"
}

func normalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}
