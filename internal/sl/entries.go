package sl

import (
	"context"
	"fmt"
	"time"

	"sl-go/internal/model"
)

// EntryReconciler writes one volume's scan report into the store.
type EntryReconciler struct {
	access *StoreAccess
	logger Logger
}

func NewEntryReconciler(access *StoreAccess, logger Logger) *EntryReconciler {
	return &EntryReconciler{access: access, logger: logger}
}

// ReconcileResult reports what a reconcile pass did to one volume's entries.
type ReconcileResult struct {
	VolumeID string
	Counts
}

// UpsertVolume creates or updates the volume record for a report. cachedID is
// tried first; a stale id falls back to a search by volume name.
func (r *EntryReconciler) UpsertVolume(ctx context.Context, report *ScanReport, disk DiskInfo, user, cachedID string) (string, error) {
	scanDate, err := report.ScanTime()
	if err != nil {
		return "", fmt.Errorf("parsing scan date: %w", err)
	}
	volume := &model.Volume{
		Name:              report.VolumeName(),
		CapacityBytes:     disk.CapacityBytes,
		UsedBytes:         disk.UsedBytes,
		ValidFolders:      report.ScanInfo.ValidFolders,
		UnassignedFolders: report.ScanInfo.UnassignedFolders,
		LastScan:          scanDate,
		UUID:              report.ScanInfo.VolumeUUID,
		LastUser:          user,
	}
	props := volumeProperties(volume)

	existing, err := r.access.Resolve(ctx, RelVolumes, cachedID, volume.Name)
	if err != nil {
		return "", fmt.Errorf("resolving volume %s: %w", volume.Name, err)
	}
	if existing == nil {
		id, err := r.access.Create(ctx, RelVolumes, props)
		if err != nil {
			return "", fmt.Errorf("creating volume %s: %w", volume.Name, err)
		}
		r.logger.Info("volume created", "volume", volume.Name, "id", id)
		return id, nil
	}
	if existing.Properties.Matches(props) {
		return existing.ID, nil
	}
	if err := r.access.Patch(ctx, RelVolumes, existing.ID, props); err != nil {
		return "", fmt.Errorf("updating volume %s: %w", volume.Name, err)
	}
	r.logger.Debug("volume updated", "volume", volume.Name, "id", existing.ID)
	return existing.ID, nil
}

// Reconcile upserts every entry of the report into the volume's entry set,
// children after their parent under their qualified name, and archives stored entries the report no
// longer contains.
func (r *EntryReconciler) Reconcile(ctx context.Context, volumeID string, report *ScanReport) (*ReconcileResult, error) {
	scanDate, err := report.ScanTime()
	if err != nil {
		return nil, fmt.Errorf("parsing scan date: %w", err)
	}

	scope := Filter{Property: PropVolume, Contains: volumeID}
	counts, err := r.access.ReconcileNamed(ctx, RelStorageEntries, scope, ArchiveOrphan, func(apply ApplyFunc) error {
		for i := range report.Projects {
			project := &report.Projects[i]
			parentID, err := apply(project.Name, upsertEntry(project.Name, project, volumeID, "", scanDate))
			if err != nil {
				return fmt.Errorf("upserting entry %s: %w", project.Name, err)
			}
			for j := range project.Children {
				child := &project.Children[j]
				name := ChildEntryName(project.Name, child.Name)
				if _, err := apply(name, upsertEntry(name, child, volumeID, parentID, scanDate)); err != nil {
					return fmt.Errorf("upserting child entry %s: %w", name, err)
				}
			}
		}
		for i := range report.Unassigned {
			entry := &report.Unassigned[i]
			if _, err := apply(entry.Name, upsertEntry(entry.Name, entry, volumeID, "", scanDate)); err != nil {
				return fmt.Errorf("upserting entry %s: %w", entry.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("volume entries reconciled",
		"volume", report.VolumeName(),
		"created", counts.Created,
		"updated", counts.Updated,
		"unchanged", counts.Unchanged,
		"archived", counts.Archived)
	return &ReconcileResult{VolumeID: volumeID, Counts: counts}, nil
}

func upsertEntry(name string, e *ReportEntry, volumeID, parentID string, scanDate time.Time) DecideFunc {
	entry := &model.StorageEntry{
		Name:         name,
		AbsolutePath: e.AbsolutePath,
		SizeBytes:    e.SizeBytes,
		SizeGB:       BytesToGB(e.SizeBytes),
		FileCount:    e.FileCount,
		LastScan:     scanDate,
		Status:       model.StatusUnassigned,
		VolumeID:     volumeID,
		ParentID:     parentID,
	}
	if t, err := ParseTimestamp(e.LastModified); err == nil {
		entry.LastModified = t
	}
	if e.Classified() {
		entry.Status = model.StatusValid
		entry.Classification = &model.Classification{
			Date:        e.Date,
			ProjectName: e.ProjectName,
			Type:        model.FolderType(e.Type),
		}
	}
	props := entryProperties(entry)
	return func(*Record) (Properties, Action) {
		return props, ActionUpsert
	}
}
