package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSurvey(t *testing.T) {
	t.Run("sums files recursively", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.mov"), 100)
		writeFile(t, filepath.Join(dir, "sub", "b.mov"), 50)
		writeFile(t, filepath.Join(dir, "sub", "deeper", "c.mov"), 7)

		got := Survey(dir)
		if got.SizeBytes != 157 || got.FileCount != 3 || got.Skipped != 0 {
			t.Errorf("Survey() = %+v, want {157 3 0}", got)
		}
	})

	t.Run("does not follow symlinks", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		outside := t.TempDir()
		writeFile(t, filepath.Join(outside, "big.bin"), 1000)
		writeFile(t, filepath.Join(dir, "small.bin"), 10)
		if err := os.Symlink(outside, filepath.Join(dir, "link")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		got := Survey(dir)
		if got.SizeBytes != 10 || got.FileCount != 1 {
			t.Errorf("Survey() = %+v, want size 10 and 1 file", got)
		}
	})

	t.Run("missing folder counts as skipped", func(t *testing.T) {
		t.Parallel()
		got := Survey(filepath.Join(t.TempDir(), "gone"))
		if got.SizeBytes != 0 || got.FileCount != 0 || got.Skipped != 1 {
			t.Errorf("Survey() = %+v, want {0 0 1}", got)
		}
	})

	t.Run("unreadable subfolder is skipped", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits not enforced")
		}
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "ok.bin"), 5)
		locked := filepath.Join(dir, "locked")
		writeFile(t, filepath.Join(locked, "hidden.bin"), 5)
		if err := os.Chmod(locked, 0); err != nil {
			t.Fatalf("chmod: %v", err)
		}
		t.Cleanup(func() { os.Chmod(locked, 0755) })

		got := Survey(dir)
		if got.SizeBytes != 5 || got.FileCount != 1 || got.Skipped != 1 {
			t.Errorf("Survey() = %+v, want {5 1 1}", got)
		}
	})
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
		{5000 * 1024 * 1024 * 1024 * 1024, "5000.0 TB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
