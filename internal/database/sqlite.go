package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sl-go/internal/database/migrations"
	"sl-go/internal/sl"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements sl.Database using SQLite. The same file also
// backs the sqlite store type through RecordStore.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock sl.Clock
	idgen sl.IDGenerator
}

// NewSQLiteDatabase opens the database at path and applies pending
// migrations. path can be a file path or ":memory:" for an in-memory
// database. A nil clock or idgen uses the real clock and random UUIDs.
func NewSQLiteDatabase(path string, clock sl.Clock, idgen sl.IDGenerator) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	if clock == nil {
		clock = sl.RealClock{}
	}
	if idgen == nil {
		idgen = sl.UUIDGenerator{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock, idgen: idgen}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would see its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Volume state

func (s *SQLiteDatabase) FindVolumeState(name string) (*sl.VolumeState, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT name, record_id, last_scan_at, mounted FROM volumes WHERE name = ?", name)
	state, err := scanVolumeState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding volume state: %w", err)
	}
	return state, nil
}

func (s *SQLiteDatabase) SaveVolumeState(state *sl.VolumeState) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO volumes (name, record_id, last_scan_at, mounted)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			record_id = excluded.record_id,
			last_scan_at = excluded.last_scan_at,
			mounted = excluded.mounted`,
		state.Name, state.RecordID, state.LastScanAt, state.Mounted)
	if err != nil {
		return fmt.Errorf("saving volume state: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListVolumeStates() ([]*sl.VolumeState, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT name, record_id, last_scan_at, mounted FROM volumes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing volume states: %w", err)
	}
	defer rows.Close()

	var result []*sl.VolumeState
	for rows.Next() {
		state, err := scanVolumeState(rows)
		if err != nil {
			return nil, fmt.Errorf("reading volume state: %w", err)
		}
		result = append(result, state)
	}
	return result, rows.Err()
}

func (s *SQLiteDatabase) SetMountedVolumes(names []string) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE volumes SET mounted = 0"); err != nil {
		return fmt.Errorf("clearing mounted volumes: %w", err)
	}
	for _, name := range names {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO volumes (name, mounted) VALUES (?, 1)
			ON CONFLICT (name) DO UPDATE SET mounted = 1`, name)
		if err != nil {
			return fmt.Errorf("marking %s mounted: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVolumeState(row rowScanner) (*sl.VolumeState, error) {
	var state sl.VolumeState
	if err := row.Scan(&state.Name, &state.RecordID, &state.LastScanAt, &state.Mounted); err != nil {
		return nil, err
	}
	return &state, nil
}

// Sync operation tracking

func (s *SQLiteDatabase) CreateSyncOperation(operation, parameters string, startedAt time.Time) (*sl.SyncOperation, error) {
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO sync_operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')",
		operation, parameters, startedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("creating sync operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading sync operation id: %w", err)
	}
	return &sl.SyncOperation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt.UTC(),
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishSyncOperation(id int64, finishedAt time.Time, status, message string) error {
	res, err := s.db.ExecContext(context.Background(),
		"UPDATE sync_operations SET finished_at = ?, status = ?, message = ? WHERE id = ?",
		finishedAt.UTC(), status, message, id)
	if err != nil {
		return fmt.Errorf("finishing sync operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing sync operation: no operation with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListSyncOperations(limit int) ([]*sl.SyncOperation, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, operation, parameters, started_at, finished_at, status, message
		FROM sync_operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	defer rows.Close()

	var result []*sl.SyncOperation
	for rows.Next() {
		var op sl.SyncOperation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status, &op.Message); err != nil {
			return nil, fmt.Errorf("reading sync operation: %w", err)
		}
		result = append(result, &op)
	}
	return result, rows.Err()
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements sl.Database interface
var _ sl.Database = (*SQLiteDatabase)(nil)
