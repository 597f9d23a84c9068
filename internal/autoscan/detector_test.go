package autoscan_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"sl-go/internal/autoscan"
	"sl-go/internal/config"
	"sl-go/internal/sl"
	"sl-go/internal/testutil"
)

func mount(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.MkdirAll(filepath.Join(root, n), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func newDetector(t *testing.T, root string, db sl.Database, clock sl.Clock) *autoscan.Detector {
	t.Helper()
	cfg := config.NewConfig("test", t.TempDir()).AutoScan
	cfg.VolumesRoot = root
	d, err := autoscan.NewDetector(cfg, db, clock, sl.NewNopLogger())
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	return d
}

func names(cs []autoscan.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name + ":" + string(c.Reason)
	}
	return out
}

func TestDetector_Matches(t *testing.T) {
	d := newDetector(t, t.TempDir(), testutil.NewTestDatabase(t), testutil.FixedClock())
	tests := map[string]bool{
		"NXT 01":       true,
		"nxt 7":        true,
		"NXT  005":     true,
		"TOWER 2":      true,
		"NXT HUB 1":    true,
		"nxt hub 12":   true,
		"NXT":          false,
		"NXT 01 copy":  false,
		"Macintosh HD": false,
		"Backup":       false,
	}
	for name, want := range tests {
		if got := d.Matches(name); got != want {
			t.Errorf("Matches(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDetector_MountedVolumes(t *testing.T) {
	root := t.TempDir()
	mount(t, root, "NXT 02", "Macintosh HD", "NXT 01", "Recovery")
	if err := os.WriteFile(filepath.Join(root, "file"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	d := newDetector(t, root, testutil.NewTestDatabase(t), testutil.FixedClock())

	got, err := d.MountedVolumes()
	if err != nil {
		t.Fatalf("MountedVolumes() error = %v", err)
	}
	if want := []string{"NXT 01", "NXT 02"}; !slices.Equal(got, want) {
		t.Errorf("MountedVolumes() = %v, want %v", got, want)
	}

	missing := newDetector(t, filepath.Join(root, "absent"), testutil.NewTestDatabase(t), testutil.FixedClock())
	if got, err := missing.MountedVolumes(); err != nil || len(got) != 0 {
		t.Errorf("MountedVolumes() on missing root = %v, %v", got, err)
	}
}

func TestDetector_Plan(t *testing.T) {
	root := t.TempDir()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t)
	mount(t, root, "NXT 01", "NXT 02", "USB STICK")
	d := newDetector(t, root, db, clock)

	plan, err := d.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if want := []string{"NXT 01:new", "NXT 02:new"}; !slices.Equal(names(plan.Candidates), want) {
		t.Errorf("first Plan() = %v, want %v", names(plan.Candidates), want)
	}
	if !slices.Equal(plan.Ignored, []string{"USB STICK"}) {
		t.Errorf("Ignored = %v", plan.Ignored)
	}
	if plan.Candidates[0].Path != filepath.Join(root, "NXT 01") {
		t.Errorf("Path = %q", plan.Candidates[0].Path)
	}

	// NXT 01 synced now; NXT 02 failed and has no scan time.
	if err := db.SaveVolumeState(&sl.VolumeState{Name: "NXT 01", LastScanAt: sql.NullTime{Time: clock.Now(), Valid: true}}); err != nil {
		t.Fatal(err)
	}
	if err := d.Commit(plan); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	plan, err = d.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if want := []string{"NXT 02:rescan"}; !slices.Equal(names(plan.Candidates), want) {
		t.Errorf("second Plan() = %v, want %v", names(plan.Candidates), want)
	}

	clock.Advance(time.Hour)
	plan, err = d.Plan()
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if want := []string{"NXT 01:rescan", "NXT 02:rescan"}; !slices.Equal(names(plan.Candidates), want) {
		t.Errorf("Plan() after interval = %v, want %v", names(plan.Candidates), want)
	}
	if !plan.Candidates[0].LastScan.Equal(clock.Now().Add(-time.Hour)) {
		t.Errorf("LastScan = %v", plan.Candidates[0].LastScan)
	}
}

func TestDetector_RemountIsNew(t *testing.T) {
	root := t.TempDir()
	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t)
	mount(t, root, "NXT 01")
	d := newDetector(t, root, db, clock)

	if err := db.SaveVolumeState(&sl.VolumeState{Name: "NXT 01", LastScanAt: sql.NullTime{Time: clock.Now(), Valid: true}}); err != nil {
		t.Fatal(err)
	}
	plan, _ := d.Plan()
	if err := d.Commit(plan); err != nil {
		t.Fatal(err)
	}

	// Unmounted for one run.
	if err := os.Remove(filepath.Join(root, "NXT 01")); err != nil {
		t.Fatal(err)
	}
	plan, _ = d.Plan()
	if len(plan.Candidates) != 0 {
		t.Errorf("Plan() with nothing mounted = %v", names(plan.Candidates))
	}
	d.Commit(plan)

	mount(t, root, "NXT 01")
	plan, _ = d.Plan()
	if want := []string{"NXT 01:new"}; !slices.Equal(names(plan.Candidates), want) {
		t.Errorf("Plan() after remount = %v, want %v", names(plan.Candidates), want)
	}
}

func TestNewDetector_InvalidPattern(t *testing.T) {
	cfg := config.AutoScanConfig{Patterns: []string{"("}}
	if _, err := autoscan.NewDetector(cfg, testutil.NewTestDatabase(t), testutil.FixedClock(), sl.NewNopLogger()); err == nil {
		t.Error("NewDetector() expected error for invalid pattern")
	}
}
