// Package migrations embeds the state database schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// SchemaStatus compares a database's schema version with the embedded files.
type SchemaStatus struct {
	Current uint // 0 when the database was never migrated
	Latest  uint
	Dirty   bool
}

// UpToDate reports whether the database can be used by this binary.
func (s SchemaStatus) UpToDate() bool {
	return s.Current == s.Latest && !s.Dirty
}

// Status reads the schema version of db. The migrate instance is not closed
// because that would close db, which the caller owns.
func Status(db *sql.DB) (SchemaStatus, error) {
	m, err := newMigrate(db)
	if err != nil {
		return SchemaStatus{}, err
	}

	var status SchemaStatus
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return SchemaStatus{}, fmt.Errorf("failed to get database version: %w", err)
	default:
		status.Current, status.Dirty = version, dirty
	}

	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()
	if status.Latest, err = latestVersion(src); err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to determine latest version: %w", err)
	}
	return status, nil
}

// CheckDBMigrationStatus returns nil when the schema is at the embedded
// version and an error naming the mismatch otherwise.
func CheckDBMigrationStatus(db *sql.DB) error {
	s, err := Status(db)
	if err != nil {
		return err
	}
	switch {
	case s.Current == 0 && !s.Dirty:
		return fmt.Errorf("database has no schema version (needs migration)")
	case s.Dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", s.Current)
	case s.Current < s.Latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			s.Current, s.Latest, s.Latest-s.Current)
	case s.Current > s.Latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			s.Current, s.Latest)
	}
	return nil
}

// MigrateUp applies every pending migration. An up-to-date database is not an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// latestVersion walks the source to its last migration; Next fails past the end.
func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
