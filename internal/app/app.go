package app

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"time"

	"sl-go/internal/archive"
	"sl-go/internal/autoscan"
	"sl-go/internal/config"
	"sl-go/internal/database"
	"sl-go/internal/encryption"
	"sl-go/internal/fs"
	"sl-go/internal/queue"
	"sl-go/internal/sl"
	"sl-go/internal/store"
	"sl-go/internal/store/notion"
)

// stateVolume is the archive key under which the state database snapshot is kept.
const (
	stateVolume   = "_state"
	stateSnapshot = "sl.db"
)

// Options describe one CLI invocation.
type Options struct {
	// ConfigPath is where discovered store ids are cached. Empty disables caching.
	ConfigPath string
	// Operation names the CLI command being run (e.g. "sync", "autoscan").
	Operation  string
	Parameters string
	Verbose    bool
}

// SLApp is the application layer between the CLI and SLService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type SLApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	store     sl.Store
	archives  []sl.ReportArchive
	encryptor sl.Encryptor
	scanner   *fs.Scanner
	detector  *autoscan.Detector
	service   *sl.SLService
	clock     sl.Clock
	logger    sl.Logger
	op        *SyncOperation
	logFile   *os.File
}

// NewSLApp creates a fully wired SLApp from the given config.
// The caller must call Close when done.
func NewSLApp(ctx context.Context, cfg *config.Config, opts Options) (*SLApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &SLApp{
		cfg:     cfg,
		clock:   sl.RealClock{},
		logger:  logger,
		op:      NewSyncOperation(opts.Operation, opts.Parameters),
		logFile: logFile,
	}
	if err := a.wire(ctx, opts); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *SLApp) wire(ctx context.Context, opts Options) error {
	cfg := a.cfg

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	storeCfg := cfg.Store
	storeCfg.NotionToken = NotionToken(cfg)
	if storeCfg.Timeout.Duration <= 0 {
		storeCfg.Timeout.Duration = config.DefaultStoreTimeout
	}
	st, err := store.NewStoreFromConfig(ctx, storeCfg, db, a.logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	a.store = st
	if ns, ok := st.(*notion.Store); ok {
		a.cacheDatabaseIDs(ns.DatabaseIDs(), opts.ConfigPath)
	}

	q, err := queue.NewQueueFromConfig(cfg.Queue)
	if err != nil {
		return fmt.Errorf("creating queue: %w", err)
	}

	for _, ac := range cfg.Archives {
		ar, err := archive.NewArchiveFromConfig(ctx, ac)
		if err != nil {
			return fmt.Errorf("creating archive %q: %w", ac.Name, err)
		}
		a.archives = append(a.archives, ar)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	a.scanner = fs.NewScanner(cfg.Scan.Ignore, cfg.Scan.PassThrough, a.clock, a.logger)
	a.detector, err = autoscan.NewDetector(cfg.AutoScan, db, a.clock, a.logger)
	if err != nil {
		return fmt.Errorf("creating volume detector: %w", err)
	}

	a.service = sl.NewSLService(st, db, q, a.archives, enc, a.scanner, a.logger, a.clock, sl.Settings{
		User:         cfg.User,
		StoreTimeout: storeCfg.Timeout.Duration,
		DiskUsage:    fs.DiskUsage,
	})
	return nil
}

// cacheDatabaseIDs writes the notion database ids back to the config file
// when bootstrap found or created different ones.
func (a *SLApp) cacheDatabaseIDs(ids map[string]string, configPath string) {
	if maps.Equal(ids, a.cfg.Store.NotionDatabases) {
		return
	}
	a.cfg.Store.NotionDatabases = ids
	if configPath == "" {
		return
	}
	if err := config.Save(configPath, a.cfg); err != nil {
		a.logger.Warn("caching notion database ids failed", "error", err)
		return
	}
	a.logger.Info("notion database ids cached", "config", configPath)
}

// persistOperation saves the sync operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *SLApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	rec, err := a.db.CreateSyncOperation(a.op.Operation, a.op.Parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting sync operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// mutate runs fn as part of the recorded operation.
func (a *SLApp) mutate(fn func() error) error {
	if err := a.persistOperation(); err != nil {
		return err
	}
	err := fn()
	a.op.Fail(err)
	return err
}

// Scan resolves the given path and produces its scan report.
func (a *SLApp) Scan(rawPath string) (*sl.ScanReport, error) {
	root, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.Scan(root)
}

// SyncReport syncs an already loaded report.
func (a *SLApp) SyncReport(ctx context.Context, report *sl.ScanReport) (*sl.SyncResult, error) {
	var result *sl.SyncResult
	err := a.mutate(func() error {
		var err error
		result, err = a.service.Sync(ctx, report, sl.DiskInfo{})
		return err
	})
	return result, err
}

// SyncFile reads a report file and syncs it. An unreadable report is recorded
// as a failed operation.
func (a *SLApp) SyncFile(ctx context.Context, path string) (*sl.SyncResult, error) {
	var result *sl.SyncResult
	err := a.mutate(func() error {
		report, err := ReadReportFile(path)
		if err != nil {
			return err
		}
		result, err = a.service.Sync(ctx, report, sl.DiskInfo{})
		return err
	})
	return result, err
}

// Enqueue queues a report for a later DrainQueue.
func (a *SLApp) Enqueue(report *sl.ScanReport) error {
	return a.service.Enqueue(report)
}

// DrainQueue syncs every queued report.
func (a *SLApp) DrainQueue(ctx context.Context) ([]*sl.SyncResult, error) {
	var results []*sl.SyncResult
	err := a.mutate(func() error {
		var err error
		results, err = a.service.DrainQueue(ctx)
		return err
	})
	return results, err
}

// Analyze recomputes project groups and anomalies without a new scan.
func (a *SLApp) Analyze(ctx context.Context) (*sl.SyncResult, error) {
	var result *sl.SyncResult
	err := a.mutate(func() error {
		var err error
		result, err = a.service.Analyze(ctx)
		return err
	})
	return result, err
}

// AutoScanResult reports one auto-scan run.
type AutoScanResult struct {
	Plan   *autoscan.Plan
	Synced []*sl.SyncResult
	Failed map[string]error
}

// AutoScan scans and syncs every volume the detector picks. A failing volume
// is logged and skipped; it is picked again on the next run because its last
// scan time did not move.
func (a *SLApp) AutoScan(ctx context.Context) (*AutoScanResult, error) {
	plan, err := a.detector.Plan()
	if err != nil {
		return nil, err
	}
	result := &AutoScanResult{Plan: plan, Failed: make(map[string]error)}
	for _, name := range plan.Ignored {
		a.logger.Debug("volume ignored by auto-scan", "volume", name)
	}

	if len(plan.Candidates) > 0 {
		if err := a.persistOperation(); err != nil {
			return nil, err
		}
	}
	for _, c := range plan.Candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		a.logger.Info("auto-scanning volume", "volume", c.Name, "reason", c.Reason)
		synced, err := a.scanAndSync(ctx, c.Path)
		if err != nil {
			a.logger.Error("auto-scan failed", "volume", c.Name, "error", err)
			result.Failed[c.Name] = err
			continue
		}
		result.Synced = append(result.Synced, synced)
	}
	if len(result.Failed) > 0 {
		a.op.Fail(fmt.Errorf("%d of %d volumes failed", len(result.Failed), len(plan.Candidates)))
	}

	if err := a.detector.Commit(plan); err != nil {
		return result, err
	}
	return result, nil
}

func (a *SLApp) scanAndSync(ctx context.Context, root string) (*sl.SyncResult, error) {
	report, err := a.service.Scan(root)
	if err != nil {
		return nil, err
	}
	return a.service.Sync(ctx, report, sl.DiskInfo{})
}

// QueuedReports lists reports waiting in the queue.
func (a *SLApp) QueuedReports() ([]*sl.QueuedReport, error) {
	return a.service.QueuedReports()
}

// VolumeStates lists the volumes the local database knows.
func (a *SLApp) VolumeStates() ([]*sl.VolumeState, error) {
	return a.service.VolumeStates()
}

// GetHistory returns the most recent sync operations.
func (a *SLApp) GetHistory(limit int) ([]*sl.SyncOperation, error) {
	return a.service.GetHistory(limit)
}

// ListReports returns the archived report names of a volume.
func (a *SLApp) ListReports(volume string) ([]string, error) {
	return a.service.ListReports(volume)
}

// GetReport writes an archived report to w.
func (a *SLApp) GetReport(volume, name, passphrase string, w io.Writer) error {
	return a.service.GetReport(volume, name, passphrase, w)
}

// ReportEncrypted reports whether an archived report name needs a passphrase.
func ReportEncrypted(name string) bool {
	return filepath.Ext(name) == ".age"
}

// SetupEncryption generates the key pair used for archived reports.
func (a *SLApp) SetupEncryption(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// ReadReportFile opens and decodes a scan report.
func ReadReportFile(path string) (*sl.ScanReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()
	report, err := sl.ReadReport(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return report, nil
}

// WriteReportFile writes a scan report as JSON, replacing path atomically.
func WriteReportFile(path string, report *sl.ScanReport) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := sl.WriteReport(tmp, report); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing report file: %w", err)
	}
	return nil
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record and stores a
// snapshot of the state database in the first archive.
func (a *SLApp) Close() error {
	var firstErr error
	if a.op.Persisted() {
		if err := a.db.FinishSyncOperation(a.op.ID, a.clock.Now(), a.op.Status, a.op.Message); err != nil {
			firstErr = fmt.Errorf("finishing sync operation: %w", err)
		}
		if err := a.snapshotState(); err != nil {
			a.logger.Warn("archiving state database failed", "error", err)
		}
	}
	if err := a.closeResources(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *SLApp) closeResources() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// snapshotState copies the state database into the first archive. In-memory
// databases are skipped.
func (a *SLApp) snapshotState() error {
	if len(a.archives) == 0 || a.cfg.Database.Type != "sqlite" {
		return nil
	}
	tmp, err := os.CreateTemp("", "sl-db-snapshot-*.db")
	if err != nil {
		return fmt.Errorf("creating temp file for db snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // VACUUM INTO needs a fresh path
	defer os.Remove(tmpPath)

	if err := a.db.BackupTo(tmpPath); err != nil {
		return err
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening db snapshot: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}
	return a.archives[0].PutReport(stateVolume, stateSnapshot, f, info.Size())
}
