package sl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// ScanReport is the JSON document a scanner produces for one volume.
type ScanReport struct {
	ScanInfo   ScanInfo      `json:"scan_info"`
	Projects   []ReportEntry `json:"projects"`
	Unassigned []ReportEntry `json:"unassigned"`
}

// ScanInfo describes the scan itself. Capacity and used bytes are optional;
// reports written by other tools omit them.
type ScanInfo struct {
	ScannedPath       string `json:"scanned_path"`
	ScanDate          string `json:"scan_date"`
	TotalFolders      int    `json:"total_folders"`
	ValidFolders      int    `json:"valid_folders"`
	UnassignedFolders int    `json:"unassigned_folders"`
	VolumeUUID        string `json:"volume_uuid,omitempty"`
	CapacityBytes     int64  `json:"capacity_bytes,omitempty"`
	UsedBytes         int64  `json:"used_bytes,omitempty"`
}

// ReportEntry is one folder in a scan report. Classification fields are set
// for entries under projects and for classified children.
type ReportEntry struct {
	Name         string        `json:"name"`
	AbsolutePath string        `json:"absolute_path"`
	SizeBytes    int64         `json:"size_bytes"`
	SizeHuman    string        `json:"size_human,omitempty"`
	FileCount    int64         `json:"file_count"`
	LastModified string        `json:"last_modified"`
	Date         string        `json:"date,omitempty"`
	ProjectName  string        `json:"project_name,omitempty"`
	Type         string        `json:"type,omitempty"`
	Children     []ReportEntry `json:"children,omitempty"`
}

// Classified reports whether the entry carries a full classification.
func (e *ReportEntry) Classified() bool {
	return e.Date != "" && e.ProjectName != "" && e.Type != ""
}

// DiskInfo is the capacity and usage of a volume in bytes.
type DiskInfo struct {
	CapacityBytes int64
	UsedBytes     int64
}

// VolumeName is the natural key of the scanned volume: the last path element.
func (r *ScanReport) VolumeName() string {
	return filepath.Base(filepath.Clean(r.ScanInfo.ScannedPath))
}

// ScanTime parses the report's scan date.
func (r *ScanReport) ScanTime() (time.Time, error) {
	return ParseTimestamp(r.ScanInfo.ScanDate)
}

// Disk returns the disk info recorded in the report, if any.
func (r *ScanReport) Disk() DiskInfo {
	return DiskInfo{CapacityBytes: r.ScanInfo.CapacityBytes, UsedBytes: r.ScanInfo.UsedBytes}
}

// Validate checks the fields the engine relies on.
func (r *ScanReport) Validate() error {
	if strings.TrimSpace(r.ScanInfo.ScannedPath) == "" {
		return errors.New("scan report has no scanned_path")
	}
	if _, err := r.ScanTime(); err != nil {
		return fmt.Errorf("scan report has invalid scan_date: %w", err)
	}
	seen := make(map[string]bool)
	add := func(name string) error {
		if seen[name] {
			return fmt.Errorf("scan report lists %q twice", name)
		}
		seen[name] = true
		return nil
	}
	for _, e := range r.Projects {
		if e.Name == "" {
			return errors.New("scan report contains a project entry without a name")
		}
		if err := add(e.Name); err != nil {
			return err
		}
		for _, c := range e.Children {
			if c.Name == "" {
				return fmt.Errorf("scan report contains a child of %q without a name", e.Name)
			}
			if err := add(ChildEntryName(e.Name, c.Name)); err != nil {
				return err
			}
		}
	}
	for _, e := range r.Unassigned {
		if e.Name == "" {
			return errors.New("scan report contains an unassigned entry without a name")
		}
		if err := add(e.Name); err != nil {
			return err
		}
	}
	return nil
}

// ChildEntryName is the store name of a child folder. Children of different
// projects often share names ("Export"), so the parent's name qualifies them;
// folder names cannot contain "/", which keeps the result unique per volume.
func ChildEntryName(parent, child string) string {
	return parent + "/" + child
}

// ReadReport decodes and validates a scan report.
func ReadReport(r io.Reader) (*ScanReport, error) {
	var report ScanReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding scan report: %w", err)
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return &report, nil
}

// WriteReport encodes a scan report as indented JSON.
func WriteReport(w io.Writer, report *ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding scan report: %w", err)
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp accepts ISO 8601 timestamps with or without offset and
// fractional seconds, and plain dates. Values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// DayOf returns the YYYY-MM-DD part of a timestamp string, or "" if it does not parse.
func DayOf(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

const bytesPerGB = 1024 * 1024 * 1024

// BytesToGB converts bytes to gigabytes rounded to two decimals, the unit
// every size comparison uses.
func BytesToGB(b int64) float64 {
	return round(float64(b)/bytesPerGB, 2)
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
