package testutil

import (
	"sl-go/internal/classify"
	"sl-go/internal/sl"
)

// GB is one gigabyte in bytes, the unit test reports are sized in.
const GB = 1024 * 1024 * 1024

// ReportBuilder assembles scan reports for tests. Entry names are classified
// with the real naming convention.
type ReportBuilder struct {
	report *sl.ScanReport
}

// NewReport starts a report for a volume mounted at /Volumes/<volume>.
func NewReport(volume, scanDate string) *ReportBuilder {
	return &ReportBuilder{report: &sl.ScanReport{
		ScanInfo: sl.ScanInfo{
			ScannedPath: "/Volumes/" + volume,
			ScanDate:    scanDate,
		},
	}}
}

func (b *ReportBuilder) entry(name string, sizeGB float64) sl.ReportEntry {
	e := sl.ReportEntry{
		Name:         name,
		AbsolutePath: b.report.ScanInfo.ScannedPath + "/" + name,
		SizeBytes:    int64(sizeGB * GB),
		FileCount:    10,
		LastModified: "2024-04-30T12:00:00",
	}
	if c, ok := classify.Classify(name); ok {
		e.Date = c.Date
		e.ProjectName = c.ProjectName
		e.Type = string(c.Type)
	}
	return e
}

// Project adds a top-level entry. Names that do not classify still land in
// the projects list, as a scanner would leave them for pass-through folders.
func (b *ReportBuilder) Project(name string, sizeGB float64, children ...sl.ReportEntry) *ReportBuilder {
	e := b.entry(name, sizeGB)
	for _, c := range children {
		c.AbsolutePath = e.AbsolutePath + "/" + c.Name
		e.Children = append(e.Children, c)
	}
	b.report.Projects = append(b.report.Projects, e)
	b.report.ScanInfo.TotalFolders++
	b.report.ScanInfo.ValidFolders++
	return b
}

// Child returns a classified child entry for Project.
func (b *ReportBuilder) Child(name string, sizeGB float64) sl.ReportEntry {
	return b.entry(name, sizeGB)
}

// Unassigned adds an entry that did not match the naming convention.
func (b *ReportBuilder) Unassigned(name string, sizeGB float64) *ReportBuilder {
	e := b.entry(name, sizeGB)
	e.Date, e.ProjectName, e.Type = "", "", ""
	b.report.Unassigned = append(b.report.Unassigned, e)
	b.report.ScanInfo.TotalFolders++
	b.report.ScanInfo.UnassignedFolders++
	return b
}

// Disk sets the capacity and usage recorded in the report.
func (b *ReportBuilder) Disk(capacityGB, usedGB float64) *ReportBuilder {
	b.report.ScanInfo.CapacityBytes = int64(capacityGB * GB)
	b.report.ScanInfo.UsedBytes = int64(usedGB * GB)
	return b
}

func (b *ReportBuilder) Build() *sl.ScanReport {
	return b.report
}
