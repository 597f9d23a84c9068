package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"sl-go/internal/sl"
)

// recordPageSize matches the Notion page size so both backends page alike.
const recordPageSize = 100

// RecordStore implements sl.Store on the records table. It serves offline use
// and tests that want persistence without a Notion workspace.
type RecordStore struct {
	db *SQLiteDatabase
}

// Records returns the store backed by this database.
func (s *SQLiteDatabase) Records() *RecordStore {
	return &RecordStore{db: s}
}

func (r *RecordStore) Create(ctx context.Context, rel sl.Relation, props sl.Properties) (string, error) {
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encoding properties: %w", err)
	}
	id := r.db.idgen.New()
	now := r.db.clock.Now().UTC()
	_, err = r.db.db.ExecContext(ctx, `
		INSERT INTO records (id, relation, name, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(rel), props.Text(sl.PropName), string(data), now, now)
	if err != nil {
		return "", fmt.Errorf("creating record: %w", err)
	}
	return id, nil
}

func (r *RecordStore) Patch(ctx context.Context, id string, props sl.Properties) error {
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := getRecord(ctx, tx, id)
	if err != nil {
		return err
	}
	rec.Properties.Merge(props)
	data, err := json.Marshal(rec.Properties)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE records SET name = ?, properties = ?, updated_at = ? WHERE id = ?",
		rec.Properties.Text(sl.PropName), string(data), r.db.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("patching record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *RecordStore) Get(ctx context.Context, id string) (*sl.Record, error) {
	return getRecord(ctx, r.db.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q queryer, id string) (*sl.Record, error) {
	var rel, data string
	err := q.QueryRowContext(ctx,
		"SELECT relation, properties FROM records WHERE id = ? AND archived = 0", id).Scan(&rel, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sl.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return decodeRecord(id, rel, data)
}

func decodeRecord(id, rel, data string) (*sl.Record, error) {
	props := make(sl.Properties)
	if err := json.Unmarshal([]byte(data), &props); err != nil {
		return nil, fmt.Errorf("decoding properties of %s: %w", id, err)
	}
	return &sl.Record{ID: id, Relation: sl.Relation(rel), Properties: props}, nil
}

// Query pages by row sequence. The cursor is the last sequence number of the
// previous page. Title filters run in SQL, everything else in process.
func (r *RecordStore) Query(ctx context.Context, rel sl.Relation, filter sl.Filter, cursor string) (*sl.Page, error) {
	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		after = n
	}

	query := "SELECT seq, id, properties FROM records WHERE relation = ? AND archived = 0 AND seq > ?"
	args := []any{string(rel), after}
	if filter.Property == sl.PropName && filter.Contains == "" {
		query += " AND name = ?"
		args = append(args, filter.Equals)
	}
	query += " ORDER BY seq"

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	page := &sl.Page{}
	for rows.Next() {
		var seq int64
		var id, data string
		if err := rows.Scan(&seq, &id, &data); err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		rec, err := decodeRecord(id, string(rel), data)
		if err != nil {
			return nil, err
		}
		if !filter.Match(rec) {
			continue
		}
		if len(page.Records) == recordPageSize {
			page.HasMore = true
			break
		}
		page.Records = append(page.Records, rec)
		page.NextCursor = strconv.FormatInt(seq, 10)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	if !page.HasMore {
		page.NextCursor = ""
	}
	return page, nil
}

func (r *RecordStore) Archive(ctx context.Context, id string) error {
	res, err := r.db.db.ExecContext(ctx,
		"UPDATE records SET archived = 1, updated_at = ? WHERE id = ? AND archived = 0",
		r.db.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("archiving record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sl.ErrNotFound
	}
	return nil
}

var _ sl.Store = (*RecordStore)(nil)
