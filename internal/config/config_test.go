package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("editor", "/home/user/.local/share/sl")
	original.Store = StoreConfig{
		Type:             "notion",
		Timeout:          Duration{45 * time.Second},
		NotionToken:      "secret_abc",
		NotionParentPage: "https://www.notion.so/Storage-0123456789abcdef0123456789abcdef",
		NotionDatabases:  map[string]string{"volumes": "db-1"},
	}
	original.Archives = append(original.Archives, ArchiveConfig{
		Type: "s3", Name: "offsite", S3Bucket: "reports", S3Prefix: "sl", S3Region: "eu-central-1",
	})
	original.Scan.Ignore = []string{"tmp_*", "_old"}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.User != "editor" {
		t.Errorf("User = %q, want %q", got.User, "editor")
	}
	if got.Store.Type != "notion" || got.Store.Timeout.Duration != 45*time.Second {
		t.Errorf("Store = %+v", got.Store)
	}
	if got.Store.NotionDatabases["volumes"] != "db-1" {
		t.Errorf("NotionDatabases = %v", got.Store.NotionDatabases)
	}
	if len(got.Archives) != 2 {
		t.Fatalf("len(Archives) = %d, want 2", len(got.Archives))
	}
	if got.Archives[1].S3Bucket != "reports" || got.Archives[1].S3Region != "eu-central-1" {
		t.Errorf("Archives[1] = %+v", got.Archives[1])
	}
	if got.AutoScan.RescanInterval.Duration != time.Hour {
		t.Errorf("RescanInterval = %v, want 1h", got.AutoScan.RescanInterval)
	}
	if len(got.AutoScan.IgnoredVolumes) != len(DefaultIgnoredVolumes) {
		t.Errorf("IgnoredVolumes = %v", got.AutoScan.IgnoredVolumes)
	}
	if len(got.Scan.Ignore) != 2 || got.Scan.PassThrough[0] != "NXT STUDIOS" {
		t.Errorf("Scan = %+v", got.Scan)
	}
}

func TestRead_DurationStrings(t *testing.T) {
	input := `
[store]
type = "memory"
timeout = "5s"

[autoscan]
rescan_interval = "90m"
`
	cfg, err := (&Manager{}).Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Store.Timeout.Duration != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Store.Timeout)
	}
	if cfg.AutoScan.RescanInterval.Duration != 90*time.Minute {
		t.Errorf("rescan_interval = %v, want 90m", cfg.AutoScan.RescanInterval)
	}

	if _, err := (&Manager{}).Read(strings.NewReader("[store]\ntimeout = \"soon\"\n")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("editor", "/data/sl")

	if cfg.LogDir != "/data/sl/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/sl/log")
	}
	if cfg.Encryption.Type != "none" {
		t.Errorf("Encryption.Type = %q, want none", cfg.Encryption.Type)
	}
	if cfg.Encryption.PublicKeyPath != "/data/sl/keys/sl.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if cfg.Store.Timeout.Duration != DefaultStoreTimeout {
		t.Errorf("Store.Timeout = %v, want %v", cfg.Store.Timeout, DefaultStoreTimeout)
	}
	if cfg.Queue.QueueDir != "/data/sl/queue" || cfg.Queue.MaxPending != DefaultMaxPending {
		t.Errorf("Queue = %+v", cfg.Queue)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNotionPageID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"0123456789abcdef0123456789abcdef", "0123456789abcdef0123456789abcdef", false},
		{"https://www.notion.so/team/Storage-Ledger-0123456789abcdef0123456789abcdef?pvs=4", "0123456789abcdef0123456789abcdef", false},
		{"01234567-89ab-cdef-0123-456789abcdef", "0123456789abcdef0123456789abcdef", false},
		{"https://www.notion.so/nothing-here", "", true},
	}
	for _, tt := range tests {
		got, err := NotionPageID(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("NotionPageID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NotionPageID(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Run("notion requires parent page", func(t *testing.T) {
		cfg := NewConfig("u", "/data")
		cfg.Store.Type = "notion"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error without parent page")
		}
		cfg.Store.NotionParentPage = "0123456789abcdef0123456789abcdef"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("unknown store type", func(t *testing.T) {
		cfg := NewConfig("u", "/data")
		cfg.Store.Type = "postgres"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unknown store type")
		}
	})

	t.Run("bad volume pattern", func(t *testing.T) {
		cfg := NewConfig("u", "/data")
		cfg.AutoScan.Patterns = []string{"("}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for invalid pattern")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("creates config file readable only by owner", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sl.toml")

		if err := Init(path, NewConfig("u", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sl.toml")
		cfg := NewConfig("u", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sl.toml")
	cfg := NewConfig("u", dir)
	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	cfg.Store.NotionDatabases = map[string]string{"log_entries": "db-9"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.Store.NotionDatabases["log_entries"] != "db-9" {
		t.Errorf("NotionDatabases = %v", got.Store.NotionDatabases)
	}
}

func TestReadFromFile(t *testing.T) {
	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/sl.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})

	t.Run("returns error for invalid TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(path, []byte("not valid [[ toml"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFromFile(path); err == nil {
			t.Fatal("ReadFromFile() expected error for invalid TOML")
		}
	})
}
