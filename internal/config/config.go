package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for sl.
type Config struct {
	User       string           `toml:"user"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Store      StoreConfig      `toml:"store"`
	Database   DatabaseConfig   `toml:"database"`
	Queue      QueueConfig      `toml:"queue"`
	Archives   []ArchiveConfig  `toml:"archives"`
	Encryption EncryptionConfig `toml:"encryption"`
	Scan       ScanConfig       `toml:"scan"`
	AutoScan   AutoScanConfig   `toml:"autoscan"`
}

// StoreConfig selects the remote store the engine reconciles against.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string   `toml:"type"`    // "notion", "sqlite" or "memory"
	Timeout Duration `toml:"timeout"` // per-call timeout; defaults to 30s

	// Notion-specific fields (only used when Type == "notion")
	NotionToken      string `toml:"notion_token,omitempty"`
	NotionParentPage string `toml:"notion_parent_page,omitempty"` // page id or full page URL
	NotionBaseURL    string `toml:"notion_base_url,omitempty"`

	// Cached database ids, refreshed when stale.
	NotionDatabases map[string]string `toml:"notion_databases,omitempty"`
}

// DatabaseConfig configures the local state database.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// QueueConfig configures the scan report queue.
type QueueConfig struct {
	Type       string `toml:"type"`                // "memory" or "filesystem"
	QueueDir   string `toml:"queue_dir,omitempty"` // only used for type=filesystem
	MaxPending int    `toml:"max_pending"`         // must be positive, defaults to 64
}

// ArchiveConfig configures one scan report archive.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "s3" or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible services; implies path-style addressing

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for archived reports.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// ScanConfig holds scanner settings.
type ScanConfig struct {
	Ignore      []string `toml:"ignore"`
	PassThrough []string `toml:"pass_through"`
}

// AutoScanConfig holds settings for scanning mounted volumes automatically.
type AutoScanConfig struct {
	VolumesRoot    string   `toml:"volumes_root"`
	Patterns       []string `toml:"patterns"`
	IgnoredVolumes []string `toml:"ignored_volumes"`
	RescanInterval Duration `toml:"rescan_interval"`
}

// Duration is a time.Duration written as a Go duration string ("30s", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const (
	DefaultStoreTimeout   = 30 * time.Second
	DefaultRescanInterval = time.Hour
	DefaultMaxPending     = 64
)

// DefaultVolumePatterns match the names of production volumes.
var DefaultVolumePatterns = []string{`(?i)^nxt\s+\d+$`, `(?i)^tower\s+\d+$`, `(?i)^nxt\s+hub\s+\d+$`}

// DefaultIgnoredVolumes are system volumes that are never scanned.
var DefaultIgnoredVolumes = []string{"Macintosh HD", "Macintosh HD - Data", "Recovery", "Preboot", "VM", "Update"}

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(user, baseDir string) *Config {
	return &Config{
		User:    user,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:    "sqlite",
			Timeout: Duration{DefaultStoreTimeout},
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: baseDir,
		},
		Queue: QueueConfig{
			Type:       "filesystem",
			QueueDir:   filepath.Join(baseDir, "queue"),
			MaxPending: DefaultMaxPending,
		},
		Archives: []ArchiveConfig{
			{Type: "filesystem", Name: "local", FSRoot: filepath.Join(baseDir, "reports")},
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "sl.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "sl.key"),
		},
		Scan: ScanConfig{
			PassThrough: []string{"NXT STUDIOS"},
		},
		AutoScan: AutoScanConfig{
			VolumesRoot:    "/Volumes",
			Patterns:       append([]string{}, DefaultVolumePatterns...),
			IgnoredVolumes: append([]string{}, DefaultIgnoredVolumes...),
			RescanInterval: Duration{DefaultRescanInterval},
		},
	}
}

var notionPageID = regexp.MustCompile(`[a-f0-9]{32}`)

// NotionPageID extracts the 32-hex page id from a page id or page URL.
// Dashed UUID forms are accepted too.
func NotionPageID(raw string) (string, error) {
	id := notionPageID.FindString(strings.ToLower(strings.ReplaceAll(raw, "-", "")))
	if id == "" {
		return "", fmt.Errorf("no page id found in %q", raw)
	}
	return id, nil
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "notion":
		if c.Store.NotionParentPage == "" {
			return fmt.Errorf("store: notion_parent_page is required for type notion")
		}
		if _, err := NotionPageID(c.Store.NotionParentPage); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("store: unknown type %q", c.Store.Type)
	}
	for _, p := range c.AutoScan.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("autoscan: invalid pattern %q: %w", p, err)
		}
	}
	if c.Queue.MaxPending < 0 {
		return fmt.Errorf("queue: max_pending must not be negative")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sl-config-*")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	m := &Manager{}
	if err := m.Write(tmp, cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting config permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing config file: %w", err)
	}
	return nil
}

// Init writes a new config file and fails if one already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Save overwrites an existing config file, for example to cache discovered
// store ids.
func Save(path string, cfg *Config) error {
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
