package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sl-go/internal/classify"
	"sl-go/internal/model"
	"sl-go/internal/sl"
)

// timestampLayout matches the report timestamps other scanners write: local
// time with microseconds and an offset.
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Scanner builds scan reports from mounted volumes.
type Scanner struct {
	ignore      *IgnoreMatcher
	passThrough []string
	clock       sl.Clock
	logger      sl.Logger
}

// NewScanner creates a Scanner. Folders named like one of passThrough
// (case-insensitive) are replaced by their own subfolders.
func NewScanner(ignorePatterns, passThrough []string, clock sl.Clock, logger sl.Logger) *Scanner {
	return &Scanner{
		ignore:      NewIgnoreMatcher(ignorePatterns),
		passThrough: passThrough,
		clock:       clock,
		logger:      logger,
	}
}

// Scan lists the first-level, non-hidden folders of root sorted by name,
// classifies each and surveys its size. PROJECT folders also get their own
// subfolders as children. Patterns from root/.slignore are applied on top of
// the configured ones.
func (s *Scanner) Scan(root string) (*sl.ScanReport, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", root)
	}

	extra, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	ignore := s.ignore.With(extra)

	folders, err := listFolders(root)
	if err != nil {
		return nil, err
	}
	var expanded []string
	lifted := make(map[string]bool)
	topLevel := make(map[string]bool)
	for _, folder := range folders {
		if s.isPassThrough(filepath.Base(folder)) {
			inner, err := listFolders(folder)
			if err != nil {
				s.logger.Warn("cannot read pass-through folder", "path", folder, "error", err)
				continue
			}
			for _, f := range inner {
				lifted[f] = true
			}
			expanded = append(expanded, inner...)
			continue
		}
		topLevel[filepath.Base(folder)] = true
		expanded = append(expanded, folder)
	}

	report := &sl.ScanReport{
		ScanInfo: sl.ScanInfo{
			ScannedPath: root,
			ScanDate:    s.clock.Now().Format(timestampLayout),
			VolumeUUID:  VolumeUUID(root),
		},
		Projects:   []sl.ReportEntry{},
		Unassigned: []sl.ReportEntry{},
	}

	skipped := 0
	for _, folder := range expanded {
		rel, _ := filepath.Rel(root, folder)
		if ignore.Match(rel) {
			s.logger.Debug("folder ignored", "path", folder)
			continue
		}
		entry, c, n := s.describe(folder)
		skipped += n
		if lifted[folder] && topLevel[entry.Name] {
			// Entry names are unique per volume; keep the pass-through prefix.
			entry.Name = filepath.ToSlash(rel)
		}
		if c == nil {
			report.Unassigned = append(report.Unassigned, entry)
			continue
		}
		if c.Type == model.TypeProject {
			children, err := listFolders(folder)
			if err != nil {
				s.logger.Warn("cannot list project children", "path", folder, "error", err)
				skipped++
			}
			for _, child := range children {
				childEntry, _, n := s.describe(child)
				skipped += n
				entry.Children = append(entry.Children, childEntry)
			}
		}
		report.Projects = append(report.Projects, entry)
	}

	report.ScanInfo.ValidFolders = len(report.Projects)
	report.ScanInfo.UnassignedFolders = len(report.Unassigned)
	report.ScanInfo.TotalFolders = len(report.Projects) + len(report.Unassigned)

	if disk, err := DiskUsage(root); err != nil {
		s.logger.Warn("reading disk usage", "path", root, "error", err)
	} else {
		report.ScanInfo.CapacityBytes = disk.CapacityBytes
		report.ScanInfo.UsedBytes = disk.UsedBytes
	}

	if skipped > 0 {
		s.logger.Warn("unreadable entries skipped during scan", "path", root, "count", skipped)
	}
	return report, nil
}

func (s *Scanner) isPassThrough(name string) bool {
	return slices.ContainsFunc(s.passThrough, func(p string) bool {
		return strings.EqualFold(p, name)
	})
}

// describe surveys one folder and classifies its name.
func (s *Scanner) describe(path string) (sl.ReportEntry, *model.Classification, int) {
	survey := Survey(path)
	entry := sl.ReportEntry{
		Name:         filepath.Base(path),
		AbsolutePath: path,
		SizeBytes:    survey.SizeBytes,
		SizeHuman:    FormatSize(survey.SizeBytes),
		FileCount:    survey.FileCount,
	}
	if info, err := os.Stat(path); err == nil {
		entry.LastModified = info.ModTime().Format(timestampLayout)
	}
	c, ok := classify.Classify(entry.Name)
	if !ok {
		return entry, nil, survey.Skipped
	}
	entry.Date = c.Date
	entry.ProjectName = c.ProjectName
	entry.Type = string(c.Type)
	return entry, c, survey.Skipped
}

// listFolders returns the non-hidden subdirectories of dir sorted by name.
// Symlinks are not followed.
func listFolders(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}

// FormatSize renders a byte count with one decimal in the largest unit below 1024.
func FormatSize(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	size := float64(b)
	units := []string{"KB", "MB", "GB", "TB"}
	for i, unit := range units {
		size /= 1024
		if size < 1024 || i == len(units)-1 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
	}
	return ""
}

var _ sl.Scanner = (*Scanner)(nil)
