package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"sl-go/internal/sl"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", nil, nil)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteDatabase_VolumeState(t *testing.T) {
	scanned := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns nil when volume unknown", func(t *testing.T) {
		db := newTestDB(t)

		state, err := db.FindVolumeState("NXT 01")
		if err != nil {
			t.Fatalf("FindVolumeState() error = %v", err)
		}
		if state != nil {
			t.Errorf("FindVolumeState() = %v, want nil", state)
		}
	})

	t.Run("saves and replaces state", func(t *testing.T) {
		db := newTestDB(t)

		initial := volumeStateFixture{Name: "NXT 01", RecordID: "rec-1"}.state()
		if err := db.SaveVolumeState(&initial); err != nil {
			t.Fatalf("SaveVolumeState() error = %v", err)
		}
		update := volumeStateFixture{Name: "NXT 01", RecordID: "rec-2", LastScan: scanned}.state()
		if err := db.SaveVolumeState(&update); err != nil {
			t.Fatalf("SaveVolumeState() error = %v", err)
		}

		state, err := db.FindVolumeState("NXT 01")
		if err != nil {
			t.Fatalf("FindVolumeState() error = %v", err)
		}
		if state == nil {
			t.Fatal("FindVolumeState() returned nil")
		}
		if state.RecordID != "rec-2" {
			t.Errorf("RecordID = %q, want %q", state.RecordID, "rec-2")
		}
		if !state.LastScanAt.Valid || !state.LastScanAt.Time.Equal(scanned) {
			t.Errorf("LastScanAt = %v, want %v", state.LastScanAt, scanned)
		}
	})

	t.Run("lists volumes by name", func(t *testing.T) {
		db := newTestDB(t)

		for _, name := range []string{"Tower 2", "NXT 01", "NXT 10"} {
			s := volumeStateFixture{Name: name}.state()
			if err := db.SaveVolumeState(&s); err != nil {
				t.Fatalf("SaveVolumeState(%s) error = %v", name, err)
			}
		}

		states, err := db.ListVolumeStates()
		if err != nil {
			t.Fatalf("ListVolumeStates() error = %v", err)
		}
		var names []string
		for _, s := range states {
			names = append(names, s.Name)
		}
		want := []string{"NXT 01", "NXT 10", "Tower 2"}
		if len(names) != len(want) {
			t.Fatalf("ListVolumeStates() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("ListVolumeStates()[%d] = %q, want %q", i, names[i], want[i])
			}
		}
	})

	t.Run("marks exactly the mounted volumes", func(t *testing.T) {
		db := newTestDB(t)

		s := volumeStateFixture{Name: "NXT 01", RecordID: "rec-1"}.state()
		if err := db.SaveVolumeState(&s); err != nil {
			t.Fatalf("SaveVolumeState() error = %v", err)
		}
		if err := db.SetMountedVolumes([]string{"NXT 01", "NXT 02"}); err != nil {
			t.Fatalf("SetMountedVolumes() error = %v", err)
		}
		if err := db.SetMountedVolumes([]string{"NXT 02"}); err != nil {
			t.Fatalf("SetMountedVolumes() error = %v", err)
		}

		first, _ := db.FindVolumeState("NXT 01")
		second, _ := db.FindVolumeState("NXT 02")
		if first.Mounted {
			t.Error("NXT 01 still mounted")
		}
		if first.RecordID != "rec-1" {
			t.Errorf("RecordID lost: %q", first.RecordID)
		}
		if second == nil || !second.Mounted {
			t.Errorf("NXT 02 state = %v, want mounted", second)
		}
	})
}

// volumeStateFixture builds volume states with readable literals.
type volumeStateFixture struct {
	Name     string
	RecordID string
	LastScan time.Time
}

func (f volumeStateFixture) state() sl.VolumeState {
	s := sl.VolumeState{Name: f.Name, RecordID: f.RecordID}
	if !f.LastScan.IsZero() {
		s.LastScanAt = sql.NullTime{Time: f.LastScan, Valid: true}
	}
	return s
}

func TestSQLiteDatabase_SyncOperations(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("records start and finish", func(t *testing.T) {
		db := newTestDB(t)

		op, err := db.CreateSyncOperation("Sync", "/Volumes/NXT 01", start)
		if err != nil {
			t.Fatalf("CreateSyncOperation() error = %v", err)
		}
		if op.ID == 0 {
			t.Error("ID is zero")
		}
		if op.Status != "running" {
			t.Errorf("Status = %q, want running", op.Status)
		}

		if err := db.FinishSyncOperation(op.ID, start.Add(time.Minute), "success", ""); err != nil {
			t.Fatalf("FinishSyncOperation() error = %v", err)
		}

		ops, err := db.ListSyncOperations(10)
		if err != nil {
			t.Fatalf("ListSyncOperations() error = %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("ListSyncOperations() returned %d operations, want 1", len(ops))
		}
		got := ops[0]
		if got.Status != "success" || got.Parameters != "/Volumes/NXT 01" {
			t.Errorf("operation = %+v", got)
		}
		if !got.FinishedAt.Valid || !got.FinishedAt.Time.Equal(start.Add(time.Minute)) {
			t.Errorf("FinishedAt = %v", got.FinishedAt)
		}
	})

	t.Run("lists newest first with limit", func(t *testing.T) {
		db := newTestDB(t)

		for i, name := range []string{"Scan", "Sync", "Analyze"} {
			if _, err := db.CreateSyncOperation(name, "", start.Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatalf("CreateSyncOperation() error = %v", err)
			}
		}

		ops, err := db.ListSyncOperations(2)
		if err != nil {
			t.Fatalf("ListSyncOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("ListSyncOperations() returned %d operations, want 2", len(ops))
		}
		if ops[0].Operation != "Analyze" || ops[1].Operation != "Sync" {
			t.Errorf("order = %s, %s; want Analyze, Sync", ops[0].Operation, ops[1].Operation)
		}
	})

	t.Run("finishing an unknown operation fails", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.FinishSyncOperation(42, start, "success", ""); err == nil {
			t.Error("FinishSyncOperation() expected error for unknown id")
		}
	})
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	s := volumeStateFixture{Name: "NXT 01", RecordID: "rec-1"}.state()
	if err := db.SaveVolumeState(&s); err != nil {
		t.Fatalf("SaveVolumeState() error = %v", err)
	}

	destPath := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(destPath); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	// Open the backup and verify it has the data
	backup, err := NewSQLiteDatabase(destPath, nil, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer backup.Close()

	state, err := backup.FindVolumeState("NXT 01")
	if err != nil {
		t.Fatalf("FindVolumeState() error = %v", err)
	}
	if state == nil || state.RecordID != "rec-1" {
		t.Errorf("backup state = %v, want rec-1", state)
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	t.Run("fails on DB without migrations applied", func(t *testing.T) {
		raw, err := OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("OpenConnection() error = %v", err)
		}
		db := &SQLiteDatabase{db: raw, path: ":memory:"}
		defer db.Close()

		// DB has no schema at all, should fail
		if err := db.CheckMigrations(); err == nil {
			t.Error("CheckMigrations() expected error for missing schema")
		}
	})

	t.Run("passes after open", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})
}
