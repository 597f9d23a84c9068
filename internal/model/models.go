package model

import "time"

// FolderType is the canonical category of a project folder after alias resolution.
type FolderType string

const (
	TypeFootage FolderType = "FOOTAGE"
	TypePhotos  FolderType = "PHOTOS"
	TypeWorking FolderType = "WORKING"
	TypeBTS     FolderType = "BTS"
	TypeProxies FolderType = "PROXIES"
	TypeProject FolderType = "PROJECT"
)

// FolderTypes lists every canonical type in display order.
var FolderTypes = []FolderType{TypeFootage, TypePhotos, TypeWorking, TypeBTS, TypeProject, TypeProxies}

// EntryStatus tells whether a storage entry matched the naming convention.
type EntryStatus string

const (
	StatusValid      EntryStatus = "Valid"
	StatusUnassigned EntryStatus = "Unassigned"
)

// BackupStatus summarizes how well an aggregated project is replicated.
type BackupStatus string

const (
	BackupNotBackedUp BackupStatus = "NotBackedUp"
	BackupPartial     BackupStatus = "Partial"
	BackupComplete    BackupStatus = "Complete"
)

// LogKind identifies which detector produced a log entry.
type LogKind string

const (
	KindMissingBackup    LogKind = "MISSING_BACKUP"
	KindSizeMismatch     LogKind = "SIZE_MISMATCH"
	KindIncompleteBackup LogKind = "INCOMPLETE_BACKUP"
	KindExcessCopies     LogKind = "EXCESS_COPIES"
)

// Priority ranks log entries.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityWarning  Priority = "Warning"
	PriorityInfo     Priority = "Info"
)

// LogStatus is the lifecycle state of a log entry.
// Implemented is set by a human and is never changed by a sync pass.
type LogStatus string

const (
	LogOpen        LogStatus = "Open"
	LogResolved    LogStatus = "Resolved"
	LogImplemented LogStatus = "Implemented"
)

// Classification is the result of matching a folder name against the naming convention.
type Classification struct {
	Date        string // YYYY-MM-DD
	ProjectName string
	Type        FolderType
}

// Volume is one physical or mounted disk.
type Volume struct {
	ID                string
	Name              string // natural key
	CapacityBytes     int64
	UsedBytes         int64
	ValidFolders      int
	UnassignedFolders int
	LastScan          time.Time
	UUID              string
	LastUser          string
}

// StorageEntry is one scanned folder on one volume.
type StorageEntry struct {
	ID             string
	Name           string // natural key within a volume
	AbsolutePath   string
	SizeBytes      int64
	SizeGB         float64 // as stored; all comparisons use this value
	FileCount      int64
	LastModified   time.Time
	LastScan       time.Time
	Classification *Classification
	Status         EntryStatus
	VolumeID       string
	ParentID       string // set for children of a PROJECT entry
}

// IsChild reports whether the entry is nested under a PROJECT entry.
func (e *StorageEntry) IsChild() bool {
	return e.ParentID != ""
}

// AggregatedProject summarizes every copy of one (date, project name) across all volumes.
type AggregatedProject struct {
	ID           string
	Key          string // "<date>_<project>"
	Date         string
	ProjectName  string
	Types        []FolderType
	VolumeIDs    []string
	EntryIDs     []string
	TotalSizeGB  float64
	Overview     string
	Mismatch     bool
	BackupStatus BackupStatus
	LastScan     time.Time
}

// LogEntry is one anomaly finding with its lifecycle state.
type LogEntry struct {
	ID           string
	Name         string // deterministic: kind, group key and subkey
	Kind         LogKind
	Priority     Priority
	Status       LogStatus
	Details      string
	Volumes      string
	FolderType   FolderType
	DifferenceGB *float64
	ProjectID    string
	DetectedAt   time.Time
	LastScan     time.Time
}
