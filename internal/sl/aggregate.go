package sl

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"sl-go/internal/model"
)

const (
	maxTextLength   = 2000
	unknownVolume   = "?"
	truncatedSuffix = "..."
)

// GroupMember is one valid storage entry inside a project group.
type GroupMember struct {
	EntryID    string
	Name       string
	Type       model.FolderType
	SizeGB     float64
	VolumeID   string
	VolumeName string
	IsChild    bool
}

// ProjectGroup is every valid entry sharing one (date, project name) key,
// across all volumes, with the summary computed from them.
type ProjectGroup struct {
	Project *model.AggregatedProject
	Members []GroupMember
}

// Key returns the group key "<date>_<project>".
func (g *ProjectGroup) Key() string {
	return g.Project.Key
}

// byType returns the members of each type in member order.
func (g *ProjectGroup) byType() map[model.FolderType][]GroupMember {
	out := make(map[model.FolderType][]GroupMember)
	for _, m := range g.Members {
		if m.Type == "" {
			continue
		}
		out[m.Type] = append(out[m.Type], m)
	}
	return out
}

// AggregateResult holds the recomputed groups, ordered by key.
type AggregateResult struct {
	Groups []*ProjectGroup
	Counts
}

// Aggregator recomputes the per-project summaries from all volumes.
type Aggregator struct {
	access *StoreAccess
	logger Logger
}

func NewAggregator(access *StoreAccess, logger Logger) *Aggregator {
	return &Aggregator{access: access, logger: logger}
}

// Aggregate loads every valid entry, groups them by project key, writes one
// aggregated project record per group and archives records whose group has no
// members left.
func (a *Aggregator) Aggregate(ctx context.Context, scanDate time.Time) (*AggregateResult, error) {
	volumes, err := a.access.QueryAll(ctx, RelVolumes, Filter{})
	if err != nil {
		return nil, fmt.Errorf("loading volumes: %w", err)
	}
	volumeNames := make(map[string]string, len(volumes))
	for _, v := range volumes {
		volumeNames[v.ID] = v.Name()
	}

	records, err := a.access.QueryAll(ctx, RelStorageEntries, Filter{Property: PropStatus, Equals: string(model.StatusValid)})
	if err != nil {
		return nil, fmt.Errorf("loading valid entries: %w", err)
	}
	entries := make([]*model.StorageEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, DecodeEntry(rec))
	}

	groups := GroupEntries(entries, volumeNames, scanDate)

	counts, err := a.access.ReconcileNamed(ctx, RelAggregatedProjects, Filter{}, ArchiveOrphan, func(apply ApplyFunc) error {
		for _, g := range groups {
			props := projectProperties(g.Project)
			id, err := apply(g.Key(), func(*Record) (Properties, Action) {
				return props, ActionUpsert
			})
			if err != nil {
				return fmt.Errorf("upserting project %s: %w", g.Key(), err)
			}
			g.Project.ID = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("projects aggregated",
		"groups", len(groups),
		"created", counts.Created,
		"updated", counts.Updated,
		"archived", counts.Archived)
	return &AggregateResult{Groups: groups, Counts: counts}, nil
}

// GroupEntries groups valid entries by (date, project name) and computes each
// group's summary. Entries missing a date or project name are skipped. Members
// are ordered by volume name then entry name so derived text is stable.
func GroupEntries(entries []*model.StorageEntry, volumeNames map[string]string, scanDate time.Time) []*ProjectGroup {
	byKey := make(map[string]*ProjectGroup)
	for _, e := range entries {
		c := e.Classification
		if c == nil || c.Date == "" || c.ProjectName == "" {
			continue
		}
		key := c.Date + "_" + c.ProjectName
		g, ok := byKey[key]
		if !ok {
			g = &ProjectGroup{Project: &model.AggregatedProject{
				Key:         key,
				Date:        c.Date,
				ProjectName: c.ProjectName,
				LastScan:    scanDate,
			}}
			byKey[key] = g
		}
		name, ok := volumeNames[e.VolumeID]
		if !ok {
			name = unknownVolume
		}
		g.Members = append(g.Members, GroupMember{
			EntryID:    e.ID,
			Name:       e.Name,
			Type:       c.Type,
			SizeGB:     e.SizeGB,
			VolumeID:   e.VolumeID,
			VolumeName: name,
			IsChild:    e.IsChild(),
		})
	}

	groups := make([]*ProjectGroup, 0, len(byKey))
	for _, g := range byKey {
		slices.SortStableFunc(g.Members, func(x, y GroupMember) int {
			return cmp.Or(cmp.Compare(x.VolumeName, y.VolumeName), cmp.Compare(x.Name, y.Name))
		})
		summarize(g)
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(x, y *ProjectGroup) int { return cmp.Compare(x.Key(), y.Key()) })
	return groups
}

func summarize(g *ProjectGroup) {
	p := g.Project
	byType := g.byType()

	p.Types = sortedTypes(byType)
	p.VolumeIDs = nil
	p.EntryIDs = nil
	total := 0.0
	for _, m := range g.Members {
		if m.VolumeID != "" && !slices.Contains(p.VolumeIDs, m.VolumeID) {
			p.VolumeIDs = append(p.VolumeIDs, m.VolumeID)
		}
		p.EntryIDs = append(p.EntryIDs, m.EntryID)
		if !m.IsChild {
			total += m.SizeGB
		}
	}
	slices.Sort(p.VolumeIDs)
	p.TotalSizeGB = round(total, 2)
	p.Overview = overview(p.Types, byType)
	p.Mismatch = hasMismatch(byType)
	p.BackupStatus = backupStatus(byType)
}

func sortedTypes(byType map[model.FolderType][]GroupMember) []model.FolderType {
	types := make([]model.FolderType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func overview(types []model.FolderType, byType map[model.FolderType][]GroupMember) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		copies := make([]string, 0, len(byType[t]))
		for _, m := range byType[t] {
			copies = append(copies, fmt.Sprintf("%s (%s GB)", m.VolumeName, formatGB(m.SizeGB)))
		}
		parts = append(parts, fmt.Sprintf("%s: %s", t, strings.Join(copies, ", ")))
	}
	return truncate(strings.Join(parts, " | "), maxTextLength)
}

// hasMismatch reports whether any type has copies of differing size.
func hasMismatch(byType map[model.FolderType][]GroupMember) bool {
	for _, members := range byType {
		if len(members) >= 2 && len(distinctSizes(members)) > 1 {
			return true
		}
	}
	return false
}

// backupStatus applies NotBackedUp, then Partial, then Complete. A type held
// on fewer than two volumes outranks any size difference.
func backupStatus(byType map[model.FolderType][]GroupMember) model.BackupStatus {
	for _, members := range byType {
		if len(distinctVolumes(members)) < 2 {
			return model.BackupNotBackedUp
		}
	}
	for _, members := range byType {
		if len(distinctSizes(members)) > 1 {
			return model.BackupPartial
		}
	}
	return model.BackupComplete
}

// volumeKey identifies the volume holding m. Unresolved volumes share the
// name "?", so the record id keys them.
func volumeKey(m GroupMember) string {
	return cmp.Or(m.VolumeID, m.VolumeName)
}

// volumeLabel names the volume holding m in finding names, where two
// unresolved volumes must stay apart.
func volumeLabel(m GroupMember) string {
	if m.VolumeName == unknownVolume && m.VolumeID != "" {
		return unknownVolume + " " + m.VolumeID
	}
	return m.VolumeName
}

// distinctVolumes returns the names of the distinct volumes holding members,
// sorted. Two unresolved volumes both appear as "?".
func distinctVolumes(members []GroupMember) []string {
	var (
		keys []string
		out  []string
	)
	for _, m := range members {
		if k := volumeKey(m); !slices.Contains(keys, k) {
			keys = append(keys, k)
			out = append(out, m.VolumeName)
		}
	}
	slices.Sort(out)
	return out
}

func distinctSizes(members []GroupMember) []float64 {
	var out []float64
	for _, m := range members {
		if !slices.Contains(out, m.SizeGB) {
			out = append(out, m.SizeGB)
		}
	}
	return out
}

// formatGB prints whole numbers with one decimal ("500.0") and others at
// their shortest exact form ("12.34").
func formatGB(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// truncate shortens s to limit characters, ending in "...".
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return clip(s, limit-utf8.RuneCountInString(truncatedSuffix)) + truncatedSuffix
}

// clip cuts s to at most limit characters.
func clip(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
