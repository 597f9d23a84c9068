package sl

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Settings carries the per-installation values the service needs.
type Settings struct {
	// User is recorded on the volume record as its last scanning user.
	User string
	// StoreTimeout bounds every remote store call.
	StoreTimeout time.Duration
	// DiskUsage reads the capacity and usage of the filesystem holding a path.
	// It fills in disk info for reports that carry none; nil disables it.
	DiskUsage func(path string) (DiskInfo, error)
}

// SLService is the orchestration layer the CLI drives: scanning, queueing,
// syncing and analysis.
type SLService struct {
	access     *StoreAccess
	entries    *EntryReconciler
	aggregator *Aggregator
	logs       *LogManager
	database   Database
	queue      ScanQueue
	archives   []ReportArchive
	encryptor  Encryptor
	scanner    Scanner
	logger     Logger
	clock      Clock
	settings   Settings
}

// NewSLService wires the engine around a store. queue, archives, encryptor and
// scanner may be nil when the caller does not use the matching operations.
func NewSLService(store Store, database Database, queue ScanQueue, archives []ReportArchive, encryptor Encryptor, scanner Scanner, logger Logger, clock Clock, settings Settings) *SLService {
	access := NewStoreAccess(store, settings.StoreTimeout, logger)
	return &SLService{
		access:     access,
		entries:    NewEntryReconciler(access, logger),
		aggregator: NewAggregator(access, logger),
		logs:       NewLogManager(access, logger),
		database:   database,
		queue:      queue,
		archives:   archives,
		encryptor:  encryptor,
		scanner:    scanner,
		logger:     logger,
		clock:      clock,
		settings:   settings,
	}
}

// SyncResult reports every stage of a sync or analysis pass.
type SyncResult struct {
	Volume   string
	VolumeID string
	Entries  Counts
	Projects Counts
	Groups   int
	Logs     *EvaluateResult
}

// Scan produces a report for the volume mounted at root.
func (s *SLService) Scan(root string) (*ScanReport, error) {
	if s.scanner == nil {
		return nil, errors.New("no scanner configured")
	}
	report, err := s.scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	s.logger.Info("volume scanned",
		"path", root,
		"valid", report.ScanInfo.ValidFolders,
		"unassigned", report.ScanInfo.UnassignedFolders)
	return report, nil
}

// Sync writes one volume's report into the store, then recomputes every
// project group and re-evaluates anomalies. A store failure aborts the pass;
// whatever was written stays and the next pass repairs it.
func (s *SLService) Sync(ctx context.Context, report *ScanReport, disk DiskInfo) (*SyncResult, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}
	scanDate, _ := report.ScanTime()
	name := report.VolumeName()
	if disk == (DiskInfo{}) {
		disk = s.diskInfo(report)
	}

	state, err := s.database.FindVolumeState(name)
	if err != nil {
		return nil, fmt.Errorf("finding volume state: %w", err)
	}
	if state == nil {
		state = &VolumeState{Name: name}
	}

	volumeID, err := s.entries.UpsertVolume(ctx, report, disk, s.settings.User, state.RecordID)
	if err != nil {
		return nil, err
	}
	state.RecordID = volumeID
	state.LastScanAt = sql.NullTime{Time: scanDate, Valid: true}
	if err := s.database.SaveVolumeState(state); err != nil {
		return nil, fmt.Errorf("saving volume state: %w", err)
	}

	reconciled, err := s.entries.Reconcile(ctx, volumeID, report)
	if err != nil {
		return nil, fmt.Errorf("reconciling entries of %s: %w", name, err)
	}

	result, err := s.analyze(ctx, scanDate)
	if err != nil {
		return nil, err
	}
	result.Volume = name
	result.VolumeID = volumeID
	result.Entries = reconciled.Counts

	if err := s.archiveReport(report, scanDate); err != nil {
		s.logger.Warn("archiving scan report failed", "volume", name, "error", err)
	}

	s.logger.Info("volume synced", "volume", name, "open_findings", len(result.Logs.OpenFindings))
	return result, nil
}

// diskInfo prefers the disk info recorded in the report and otherwise reads
// it from the scanned path, which is only possible while the volume is mounted.
func (s *SLService) diskInfo(report *ScanReport) DiskInfo {
	if disk := report.Disk(); disk != (DiskInfo{}) || s.settings.DiskUsage == nil {
		return disk
	}
	disk, err := s.settings.DiskUsage(report.ScanInfo.ScannedPath)
	if err != nil {
		s.logger.Debug("disk info unavailable", "path", report.ScanInfo.ScannedPath, "error", err)
		return DiskInfo{}
	}
	return disk
}

// Analyze recomputes project groups and anomalies from the entries already in
// the store, dated now.
func (s *SLService) Analyze(ctx context.Context) (*SyncResult, error) {
	return s.analyze(ctx, s.clock.Now())
}

func (s *SLService) analyze(ctx context.Context, scanDate time.Time) (*SyncResult, error) {
	aggregated, err := s.aggregator.Aggregate(ctx, scanDate)
	if err != nil {
		return nil, fmt.Errorf("aggregating projects: %w", err)
	}
	evaluated, err := s.logs.Evaluate(ctx, aggregated.Groups, scanDate)
	if err != nil {
		return nil, fmt.Errorf("evaluating anomalies: %w", err)
	}
	return &SyncResult{
		Projects: aggregated.Counts,
		Groups:   len(aggregated.Groups),
		Logs:     evaluated,
	}, nil
}

// Enqueue validates a report and queues it for DrainQueue.
func (s *SLService) Enqueue(report *ScanReport) error {
	if s.queue == nil {
		return errors.New("no queue configured")
	}
	if err := report.Validate(); err != nil {
		return err
	}
	if err := s.queue.Enqueue(report); err != nil {
		return fmt.Errorf("enqueueing report for %s: %w", report.VolumeName(), err)
	}
	s.logger.Info("scan report queued", "volume", report.VolumeName(), "scan_date", report.ScanInfo.ScanDate)
	return nil
}

// DrainQueue syncs queued reports oldest first until the queue is empty. The
// first failing report stays queued and stops the drain.
func (s *SLService) DrainQueue(ctx context.Context) ([]*SyncResult, error) {
	if s.queue == nil {
		return nil, errors.New("no queue configured")
	}
	var results []*SyncResult
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		item, report, err := s.queue.Next()
		if err != nil {
			return results, fmt.Errorf("reading queue: %w", err)
		}
		if item == nil {
			break
		}
		result, err := s.Sync(ctx, report, DiskInfo{})
		if err != nil {
			return results, fmt.Errorf("syncing queued report for %s: %w", item.VolumeName, err)
		}
		if err := s.queue.Remove(item.ID); err != nil {
			return results, fmt.Errorf("removing synced report: %w", err)
		}
		results = append(results, result)
	}
	s.logger.Info("queue drained", "synced", len(results))
	return results, nil
}

// QueuedReports lists the reports waiting in the queue.
func (s *SLService) QueuedReports() ([]*QueuedReport, error) {
	if s.queue == nil {
		return nil, errors.New("no queue configured")
	}
	return s.queue.List()
}

// VolumeStates lists what the local database knows about each volume.
func (s *SLService) VolumeStates() ([]*VolumeState, error) {
	states, err := s.database.ListVolumeStates()
	if err != nil {
		return nil, fmt.Errorf("listing volume states: %w", err)
	}
	return states, nil
}

const encryptedSuffix = ".age"

// ArchiveName is the name a report is archived under.
func ArchiveName(scanDate time.Time, encrypted bool) string {
	name := scanDate.UTC().Format("20060102T150405Z") + ".json"
	if encrypted {
		name += encryptedSuffix
	}
	return name
}

func (s *SLService) archiveReport(report *ScanReport, scanDate time.Time) error {
	if len(s.archives) == 0 {
		return nil
	}
	var plain bytes.Buffer
	if err := WriteReport(&plain, report); err != nil {
		return err
	}

	encrypted := s.encryptor != nil && s.encryptor.IsConfigured()
	payload := plain.Bytes()
	if encrypted {
		var sealed bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(payload), &sealed); err != nil {
			return fmt.Errorf("encrypting report: %w", err)
		}
		payload = sealed.Bytes()
	}

	name := ArchiveName(scanDate, encrypted)
	for _, archive := range s.archives {
		if err := archive.PutReport(report.VolumeName(), name, bytes.NewReader(payload), int64(len(payload))); err != nil {
			return fmt.Errorf("storing %s: %w", name, err)
		}
	}
	s.logger.Debug("scan report archived", "volume", report.VolumeName(), "name", name)
	return nil
}

// ListReports returns the archived report names of a volume.
func (s *SLService) ListReports(volume string) ([]string, error) {
	if len(s.archives) == 0 {
		return nil, errors.New("no archive configured")
	}
	names, err := s.archives[0].ListReports(volume)
	if err != nil {
		return nil, fmt.Errorf("listing reports of %s: %w", volume, err)
	}
	return names, nil
}

// GetReport writes an archived report to w, decrypting it with passphrase
// when it was stored encrypted.
func (s *SLService) GetReport(volume, name, passphrase string, w io.Writer) error {
	if len(s.archives) == 0 {
		return errors.New("no archive configured")
	}
	if !strings.HasSuffix(name, encryptedSuffix) {
		if err := s.archives[0].GetReport(volume, name, w); err != nil {
			return fmt.Errorf("reading report %s: %w", name, err)
		}
		return nil
	}

	if s.encryptor == nil {
		return fmt.Errorf("report %s is encrypted but no encryption is configured", name)
	}
	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	var sealed bytes.Buffer
	if err := s.archives[0].GetReport(volume, name, &sealed); err != nil {
		return fmt.Errorf("reading report %s: %w", name, err)
	}
	if err := dc.Decrypt(&sealed, w); err != nil {
		return fmt.Errorf("decrypting report %s: %w", name, err)
	}
	return nil
}
