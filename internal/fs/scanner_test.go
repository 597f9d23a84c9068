package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sl-go/internal/sl"
	"sl-go/internal/testutil"
)

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024-05-01_Wedding_FOOTAGE", "a.mov"), 10)
	writeFile(t, filepath.Join(root, "2024-05-01_Wedding", "2024-05-01_Wedding_PHOTOS", "p.jpg"), 5)
	writeFile(t, filepath.Join(root, "2024-05-01_Wedding", "misc", "x.txt"), 3)
	writeFile(t, filepath.Join(root, "NXT STUDIOS", "2024-06-01_Shoot_BTS", "b.mov"), 4)
	writeFile(t, filepath.Join(root, "random", "r.bin"), 2)
	writeFile(t, filepath.Join(root, ".hidden", "h.bin"), 1)
	writeFile(t, filepath.Join(root, "ignored-old", "i.bin"), 1)
	writeFile(t, filepath.Join(root, "tmp_cache", "c.bin"), 1)
	writeFile(t, filepath.Join(root, "loose-file.txt"), 1)
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("ignored-*\n"), 0644); err != nil {
		t.Fatalf("writing ignore file: %v", err)
	}

	clock := testutil.NewStubClock(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	scanner := NewScanner([]string{"tmp_*"}, []string{"nxt studios"}, clock, sl.NewNopLogger())

	report, err := scanner.Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	t.Run("classified folders become projects in name order", func(t *testing.T) {
		var names []string
		for _, p := range report.Projects {
			names = append(names, p.Name)
		}
		want := []string{"2024-05-01_Wedding", "2024-05-01_Wedding_FOOTAGE", "2024-06-01_Shoot_BTS"}
		if len(names) != len(want) {
			t.Fatalf("projects = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("projects[%d] = %s, want %s", i, names[i], want[i])
			}
		}
	})

	t.Run("unclassified folders become unassigned", func(t *testing.T) {
		if len(report.Unassigned) != 1 || report.Unassigned[0].Name != "random" {
			t.Fatalf("unassigned = %+v, want only random", report.Unassigned)
		}
		if report.Unassigned[0].Type != "" {
			t.Errorf("unassigned entry has type %q", report.Unassigned[0].Type)
		}
	})

	t.Run("project folder carries classified children", func(t *testing.T) {
		project := report.Projects[0]
		if project.Type != "PROJECT" {
			t.Fatalf("type = %s, want PROJECT", project.Type)
		}
		if project.SizeBytes != 8 || project.FileCount != 2 {
			t.Errorf("project size = %d files = %d, want 8 and 2", project.SizeBytes, project.FileCount)
		}
		if len(project.Children) != 2 {
			t.Fatalf("children = %d, want 2", len(project.Children))
		}
		photos := project.Children[0]
		if photos.Type != "PHOTOS" || photos.ProjectName != "Wedding" || photos.SizeBytes != 5 {
			t.Errorf("photos child = %+v", photos)
		}
		if misc := project.Children[1]; misc.Name != "misc" || misc.Classified() {
			t.Errorf("misc child = %+v, want unclassified", misc)
		}
	})

	t.Run("scan info counts and metadata", func(t *testing.T) {
		info := report.ScanInfo
		if info.ValidFolders != 3 || info.UnassignedFolders != 1 || info.TotalFolders != 4 {
			t.Errorf("counts = %d/%d/%d, want 3/1/4", info.ValidFolders, info.UnassignedFolders, info.TotalFolders)
		}
		got, err := report.ScanTime()
		if err != nil {
			t.Fatalf("ScanTime() error = %v", err)
		}
		if !got.Equal(clock.Now()) {
			t.Errorf("scan time = %v, want %v", got, clock.Now())
		}
		if report.VolumeName() != filepath.Base(root) {
			t.Errorf("volume name = %s, want %s", report.VolumeName(), filepath.Base(root))
		}
		if report.Projects[1].SizeHuman != "10 B" {
			t.Errorf("size_human = %q, want 10 B", report.Projects[1].SizeHuman)
		}
	})

	t.Run("report round trips through JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.json")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := sl.WriteReport(f, report); err != nil {
			t.Fatalf("WriteReport() error = %v", err)
		}
		f.Close()

		f, err = os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		back, err := sl.ReadReport(f)
		if err != nil {
			t.Fatalf("ReadReport() error = %v", err)
		}
		if len(back.Projects[0].Children) != 2 || back.ScanInfo.ScannedPath != report.ScanInfo.ScannedPath {
			t.Errorf("decoded report differs: %+v", back.ScanInfo)
		}
	})
}

func TestScanner_ScanRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	writeFile(t, path, 1)
	scanner := NewScanner(nil, nil, testutil.FixedClock(), sl.NewNopLogger())
	if _, err := scanner.Scan(path); err == nil {
		t.Fatal("expected error scanning a regular file")
	}
}

func TestScanner_ScanPassThroughNameCollision(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024-06-01_Shoot_BTS", "a.mov"), 3)
	writeFile(t, filepath.Join(root, "NXT STUDIOS", "2024-06-01_Shoot_BTS", "b.mov"), 4)
	scanner := NewScanner(nil, []string{"NXT STUDIOS"}, testutil.FixedClock(), sl.NewNopLogger())

	report, err := scanner.Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if err := report.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	names := make(map[string]int64)
	for _, p := range report.Projects {
		names[p.Name] = p.SizeBytes
	}
	if len(names) != 2 || names["2024-06-01_Shoot_BTS"] != 3 || names["NXT STUDIOS/2024-06-01_Shoot_BTS"] != 4 {
		t.Errorf("projects = %v, want top-level and prefixed pass-through entries", names)
	}
}
