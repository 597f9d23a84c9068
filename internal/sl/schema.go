package sl

import (
	"slices"
	"time"

	"sl-go/internal/model"
)

// PropName is the title property every relation shares.
const PropName = "Name"

// Volume properties.
const (
	PropCapacityGB        = "Capacity (GB)"
	PropUsedGB            = "Used (GB)"
	PropValidFolders      = "Valid Folders"
	PropUnassignedFolders = "Unassigned Folders"
	PropVolumeUUID        = "Volume UUID"
	PropLastUser          = "Last User"
	PropLastScan          = "Last Scan"
)

// Storage entry properties.
const (
	PropProjectName  = "Project Name"
	PropDate         = "Date"
	PropType         = "Type"
	PropSizeGB       = "Size (GB)"
	PropSizeBytes    = "Size (Bytes)"
	PropFileCount    = "Files"
	PropVolume       = "Volume"
	PropStatus       = "Status"
	PropAbsolutePath = "Absolute Path"
	PropLastModified = "Last Modified"
	PropParent       = "Parent"
)

// Aggregated project properties.
const (
	PropTypes        = "Types"
	PropVolumes      = "Volumes"
	PropEntries      = "Entries"
	PropTotalSizeGB  = "Total Size (GB)"
	PropOverview     = "Overview"
	PropMismatch     = "Mismatch"
	PropBackupStatus = "Backup Status"
)

// Log entry properties.
const (
	PropKind         = "Kind"
	PropPriority     = "Priority"
	PropProject      = "Project"
	PropFolderType   = "Folder Type"
	PropDetails      = "Details"
	PropVolumeNames  = "Volume Names"
	PropDifferenceGB = "Difference (GB)"
	PropDetected     = "Detected"
)

// PropertySpec declares one property of a relation schema. Target names the
// relation a relation property points to.
type PropertySpec struct {
	Name    string
	Kind    ValueKind
	Options []string
	Target  Relation
}

func folderTypeOptions() []string {
	out := make([]string, len(model.FolderTypes))
	for i, t := range model.FolderTypes {
		out[i] = string(t)
	}
	return out
}

// Schema returns the property schema of a relation, title first.
func Schema(rel Relation) []PropertySpec {
	switch rel {
	case RelVolumes:
		return []PropertySpec{
			{Name: PropName, Kind: KindTitle},
			{Name: PropCapacityGB, Kind: KindNumber},
			{Name: PropUsedGB, Kind: KindNumber},
			{Name: PropValidFolders, Kind: KindNumber},
			{Name: PropUnassignedFolders, Kind: KindNumber},
			{Name: PropLastScan, Kind: KindDate},
			{Name: PropVolumeUUID, Kind: KindText},
			{Name: PropLastUser, Kind: KindSelect},
		}
	case RelStorageEntries:
		return []PropertySpec{
			{Name: PropName, Kind: KindTitle},
			{Name: PropProjectName, Kind: KindText},
			{Name: PropDate, Kind: KindDate},
			{Name: PropType, Kind: KindSelect, Options: folderTypeOptions()},
			{Name: PropSizeGB, Kind: KindNumber},
			{Name: PropSizeBytes, Kind: KindNumber},
			{Name: PropFileCount, Kind: KindNumber},
			{Name: PropVolume, Kind: KindRelation, Target: RelVolumes},
			{Name: PropStatus, Kind: KindSelect, Options: []string{string(model.StatusValid), string(model.StatusUnassigned)}},
			{Name: PropAbsolutePath, Kind: KindText},
			{Name: PropLastModified, Kind: KindDate},
			{Name: PropLastScan, Kind: KindDate},
			{Name: PropParent, Kind: KindRelation, Target: RelStorageEntries},
		}
	case RelAggregatedProjects:
		return []PropertySpec{
			{Name: PropName, Kind: KindTitle},
			{Name: PropProjectName, Kind: KindText},
			{Name: PropDate, Kind: KindDate},
			{Name: PropTypes, Kind: KindMultiSelect, Options: folderTypeOptions()},
			{Name: PropVolumes, Kind: KindRelation, Target: RelVolumes},
			{Name: PropEntries, Kind: KindRelation, Target: RelStorageEntries},
			{Name: PropTotalSizeGB, Kind: KindNumber},
			{Name: PropOverview, Kind: KindText},
			{Name: PropMismatch, Kind: KindCheckbox},
			{Name: PropBackupStatus, Kind: KindSelect, Options: []string{
				string(model.BackupNotBackedUp), string(model.BackupPartial), string(model.BackupComplete),
			}},
			{Name: PropLastScan, Kind: KindDate},
		}
	case RelLogEntries:
		return []PropertySpec{
			{Name: PropName, Kind: KindTitle},
			{Name: PropKind, Kind: KindSelect, Options: []string{
				string(model.KindMissingBackup), string(model.KindSizeMismatch),
				string(model.KindIncompleteBackup), string(model.KindExcessCopies),
			}},
			{Name: PropPriority, Kind: KindSelect, Options: []string{
				string(model.PriorityCritical), string(model.PriorityWarning), string(model.PriorityInfo),
			}},
			{Name: PropProject, Kind: KindRelation, Target: RelAggregatedProjects},
			{Name: PropFolderType, Kind: KindSelect, Options: folderTypeOptions()},
			{Name: PropDetails, Kind: KindText},
			{Name: PropVolumeNames, Kind: KindText},
			{Name: PropDifferenceGB, Kind: KindNumber},
			{Name: PropStatus, Kind: KindSelect, Options: []string{
				string(model.LogOpen), string(model.LogResolved), string(model.LogImplemented),
			}},
			{Name: PropDetected, Kind: KindDate},
			{Name: PropLastScan, Kind: KindDate},
		}
	}
	return nil
}

func volumeProperties(v *model.Volume) Properties {
	return Properties{
		PropName:              Title(v.Name),
		PropCapacityGB:        Number(BytesToGB(v.CapacityBytes)),
		PropUsedGB:            Number(BytesToGB(v.UsedBytes)),
		PropValidFolders:      Number(float64(v.ValidFolders)),
		PropUnassignedFolders: Number(float64(v.UnassignedFolders)),
		PropLastScan:          DateTime(v.LastScan),
		PropVolumeUUID:        Text(v.UUID),
		PropLastUser:          Select(v.LastUser),
	}
}

// DecodeVolume reads a volume record. Sizes come back from their stored GB values.
func DecodeVolume(rec *Record) *model.Volume {
	p := rec.Properties
	return &model.Volume{
		ID:                rec.ID,
		Name:              p.Text(PropName),
		CapacityBytes:     int64(p.Float(PropCapacityGB) * bytesPerGB),
		UsedBytes:         int64(p.Float(PropUsedGB) * bytesPerGB),
		ValidFolders:      int(p.Float(PropValidFolders)),
		UnassignedFolders: int(p.Float(PropUnassignedFolders)),
		LastScan:          p.Time(PropLastScan),
		UUID:              p.Text(PropVolumeUUID),
		LastUser:          p.Text(PropLastUser),
	}
}

func entryProperties(e *model.StorageEntry) Properties {
	props := Properties{
		PropName:         Title(e.Name),
		PropProjectName:  Text(""),
		PropDate:         Date(""),
		PropType:         Select(""),
		PropSizeGB:       Number(e.SizeGB),
		PropSizeBytes:    Number(float64(e.SizeBytes)),
		PropFileCount:    Number(float64(e.FileCount)),
		PropVolume:       RelationTo(e.VolumeID),
		PropStatus:       Select(string(e.Status)),
		PropAbsolutePath: Text(e.AbsolutePath),
		PropLastModified: Date(dateOnly(e.LastModified)),
		PropLastScan:     DateTime(e.LastScan),
		PropParent:       RelationTo(),
	}
	if c := e.Classification; c != nil {
		props[PropProjectName] = Text(c.ProjectName)
		props[PropDate] = Date(c.Date)
		props[PropType] = Select(string(c.Type))
	}
	if e.ParentID != "" {
		props[PropParent] = RelationTo(e.ParentID)
	}
	return props
}

// DecodeEntry reads a storage entry record.
func DecodeEntry(rec *Record) *model.StorageEntry {
	p := rec.Properties
	e := &model.StorageEntry{
		ID:           rec.ID,
		Name:         p.Text(PropName),
		AbsolutePath: p.Text(PropAbsolutePath),
		SizeBytes:    int64(p.Float(PropSizeBytes)),
		SizeGB:       p.Float(PropSizeGB),
		FileCount:    int64(p.Float(PropFileCount)),
		LastModified: p.Time(PropLastModified),
		LastScan:     p.Time(PropLastScan),
		Status:       model.EntryStatus(p.Text(PropStatus)),
		VolumeID:     p.First(PropVolume),
		ParentID:     p.First(PropParent),
	}
	date := DayOf(p.Text(PropDate))
	project := p.Text(PropProjectName)
	if date != "" || project != "" || p.Text(PropType) != "" {
		e.Classification = &model.Classification{
			Date:        date,
			ProjectName: project,
			Type:        model.FolderType(p.Text(PropType)),
		}
	}
	return e
}

func projectProperties(a *model.AggregatedProject) Properties {
	types := make([]string, len(a.Types))
	for i, t := range a.Types {
		types[i] = string(t)
	}
	return Properties{
		PropName:         Title(a.Key),
		PropProjectName:  Text(a.ProjectName),
		PropDate:         Date(a.Date),
		PropTypes:        MultiSelect(types...),
		PropVolumes:      RelationTo(a.VolumeIDs...),
		PropEntries:      RelationTo(a.EntryIDs...),
		PropTotalSizeGB:  Number(a.TotalSizeGB),
		PropOverview:     Text(a.Overview),
		PropMismatch:     Checkbox(a.Mismatch),
		PropBackupStatus: Select(string(a.BackupStatus)),
		PropLastScan:     DateTime(a.LastScan),
	}
}

// DecodeProject reads an aggregated project record.
func DecodeProject(rec *Record) *model.AggregatedProject {
	p := rec.Properties
	var types []model.FolderType
	for _, t := range p.Items(PropTypes) {
		types = append(types, model.FolderType(t))
	}
	return &model.AggregatedProject{
		ID:           rec.ID,
		Key:          p.Text(PropName),
		Date:         DayOf(p.Text(PropDate)),
		ProjectName:  p.Text(PropProjectName),
		Types:        types,
		VolumeIDs:    slices.Clone(p.Items(PropVolumes)),
		EntryIDs:     slices.Clone(p.Items(PropEntries)),
		TotalSizeGB:  p.Float(PropTotalSizeGB),
		Overview:     p.Text(PropOverview),
		Mismatch:     p.Bool(PropMismatch),
		BackupStatus: model.BackupStatus(p.Text(PropBackupStatus)),
		LastScan:     p.Time(PropLastScan),
	}
}

// DecodeLog reads a log entry record.
func DecodeLog(rec *Record) *model.LogEntry {
	p := rec.Properties
	return &model.LogEntry{
		ID:           rec.ID,
		Name:         p.Text(PropName),
		Kind:         model.LogKind(p.Text(PropKind)),
		Priority:     model.Priority(p.Text(PropPriority)),
		Status:       model.LogStatus(p.Text(PropStatus)),
		Details:      p.Text(PropDetails),
		Volumes:      p.Text(PropVolumeNames),
		FolderType:   model.FolderType(p.Text(PropFolderType)),
		DifferenceGB: p.OptionalFloat(PropDifferenceGB),
		ProjectID:    p.First(PropProject),
		DetectedAt:   p.Time(PropDetected),
		LastScan:     p.Time(PropLastScan),
	}
}

func dateOnly(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
