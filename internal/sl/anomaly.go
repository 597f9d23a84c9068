package sl

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"sl-go/internal/model"
)

// Finding is one detector verdict for one log name. Fire false means the
// condition no longer holds and an open entry should be resolved. Hold means
// the detector could not evaluate the name and its entry stays as it is.
type Finding struct {
	Name       string
	Kind       model.LogKind
	Priority   model.Priority
	Fire       bool
	Hold       bool
	Details    string
	Volumes    string
	FolderType model.FolderType
	Difference *float64
}

// Detector inspects one project group and returns its findings.
type Detector func(g *ProjectGroup) []Finding

// Detectors is the set evaluated for every group, in order.
var Detectors = []Detector{
	DetectMissingBackup,
	DetectSizeMismatch,
	DetectIncompleteBackup,
	DetectExcessCopies,
}

// DetectMissingBackup fires for each type held on fewer than two volumes.
func DetectMissingBackup(g *ProjectGroup) []Finding {
	byType := g.byType()
	var out []Finding
	for _, t := range sortedTypes(byType) {
		members := byType[t]
		volumes := distinctVolumes(members)
		first := members[0]
		out = append(out, Finding{
			Name:       fmt.Sprintf("MISSING_BACKUP: %s %s", g.Key(), t),
			Kind:       model.KindMissingBackup,
			Priority:   model.PriorityCritical,
			Fire:       len(volumes) < 2,
			Details:    fmt.Sprintf("Only on %s (%s GB)", first.VolumeName, formatGB(first.SizeGB)),
			Volumes:    first.VolumeName,
			FolderType: t,
		})
	}
	return out
}

// DetectSizeMismatch fires for each type whose copies differ in size. Types
// held on fewer than two volumes are not evaluated and yield a held finding.
func DetectSizeMismatch(g *ProjectGroup) []Finding {
	byType := g.byType()
	var out []Finding
	for _, t := range sortedTypes(byType) {
		members := byType[t]
		name := fmt.Sprintf("MISMATCH: %s %s", g.Key(), t)
		if len(distinctVolumes(members)) < 2 {
			out = append(out, Finding{Name: name, Kind: model.KindSizeMismatch, Hold: true, FolderType: t})
			continue
		}
		sizes := make([]string, len(members))
		names := make([]string, len(members))
		lo, hi := members[0].SizeGB, members[0].SizeGB
		for i, m := range members {
			sizes[i] = fmt.Sprintf("%s: %s GB", m.VolumeName, formatGB(m.SizeGB))
			names[i] = m.VolumeName
			lo = min(lo, m.SizeGB)
			hi = max(hi, m.SizeGB)
		}
		diff := round(hi-lo, 2)
		out = append(out, Finding{
			Name:       name,
			Kind:       model.KindSizeMismatch,
			Priority:   model.PriorityWarning,
			Fire:       len(distinctSizes(members)) > 1,
			Details:    fmt.Sprintf("%s (diff: %s GB)", strings.Join(sizes, " vs "), formatGB(diff)),
			Volumes:    strings.Join(names, ", "),
			FolderType: t,
			Difference: &diff,
		})
	}
	return out
}

// DetectIncompleteBackup fires for each volume missing some of the group's types.
func DetectIncompleteBackup(g *ProjectGroup) []Finding {
	byType := g.byType()
	all := sortedTypes(byType)

	held := make(map[string][]model.FolderType)
	for _, t := range all {
		for _, m := range byType[t] {
			v := volumeLabel(m)
			if !slices.Contains(held[v], t) {
				held[v] = append(held[v], t)
			}
		}
	}
	volumes := make([]string, 0, len(held))
	for v := range held {
		volumes = append(volumes, v)
	}
	slices.Sort(volumes)

	var out []Finding
	for _, v := range volumes {
		var missing []string
		for _, t := range all {
			if slices.Contains(held[v], t) {
				continue
			}
			total := 0.0
			for _, m := range byType[t] {
				total += m.SizeGB
			}
			avg := round(total/float64(len(byType[t])), 1)
			missing = append(missing, fmt.Sprintf("%s (%s GB)", t, formatGB(avg)))
		}
		out = append(out, Finding{
			Name:     fmt.Sprintf("INCOMPLETE: %s %s", g.Key(), v),
			Kind:     model.KindIncompleteBackup,
			Priority: model.PriorityWarning,
			Fire:     len(missing) > 0,
			Details:  "Missing: " + strings.Join(missing, ", "),
			Volumes:  v,
		})
	}
	return out
}

// excessCopiesThreshold is the number of distinct volumes at which copies
// become excessive.
const excessCopiesThreshold = 3

// DetectExcessCopies fires for each type held on three or more volumes.
func DetectExcessCopies(g *ProjectGroup) []Finding {
	byType := g.byType()
	var out []Finding
	for _, t := range sortedTypes(byType) {
		members := byType[t]
		volumes := distinctVolumes(members)
		copies := make([]string, len(members))
		for i, m := range members {
			copies[i] = fmt.Sprintf("%s (%s GB)", m.VolumeName, formatGB(m.SizeGB))
		}
		out = append(out, Finding{
			Name:       fmt.Sprintf("EXCESS: %s %s", g.Key(), t),
			Kind:       model.KindExcessCopies,
			Priority:   model.PriorityInfo,
			Fire:       len(volumes) >= excessCopiesThreshold,
			Details:    fmt.Sprintf("%d copies: %s", len(volumes), strings.Join(copies, ", ")),
			Volumes:    strings.Join(volumes, ", "),
			FolderType: t,
		})
	}
	return out
}

// Transition names the lifecycle step a finding caused.
type Transition string

const (
	TransitionNone     Transition = ""
	TransitionOpened   Transition = "opened"
	TransitionRefresh  Transition = "refreshed"
	TransitionReopened Transition = "reopened"
	TransitionResolved Transition = "resolved"
	TransitionKept     Transition = "implemented"
)

// NextState decides what to write for a finding given the stored log entry,
// or nil when none exists. Implemented entries are never touched.
func NextState(existing *Record, f Finding, projectID string, scanDate time.Time) (Properties, Action, Transition) {
	status := model.LogStatus("")
	if existing != nil {
		status = model.LogStatus(existing.Properties.Text(PropStatus))
	}
	if status == model.LogImplemented {
		return nil, ActionSkip, TransitionKept
	}
	if f.Hold {
		return nil, ActionSkip, TransitionNone
	}

	if !f.Fire {
		if existing == nil || status != model.LogOpen {
			return nil, ActionSkip, TransitionNone
		}
		return Properties{
			PropStatus:   Select(string(model.LogResolved)),
			PropLastScan: DateTime(scanDate),
		}, ActionClear, TransitionResolved
	}

	props := Properties{
		PropKind:        Select(string(f.Kind)),
		PropPriority:    Select(string(f.Priority)),
		PropDetails:     Text(clip(f.Details, maxTextLength)),
		PropVolumeNames: Text(f.Volumes),
		PropFolderType:  Select(string(f.FolderType)),
		PropStatus:      Select(string(model.LogOpen)),
		PropLastScan:    DateTime(scanDate),
	}
	if projectID != "" {
		props[PropProject] = RelationTo(projectID)
	}
	if f.Difference != nil {
		props[PropDifferenceGB] = Number(*f.Difference)
	}

	switch {
	case existing == nil:
		props[PropDetected] = DateTime(scanDate)
		return props, ActionUpsert, TransitionOpened
	case status == model.LogResolved:
		props[PropDetected] = DateTime(scanDate)
		return props, ActionUpsert, TransitionReopened
	default:
		return props, ActionUpsert, TransitionRefresh
	}
}

// EvaluateResult reports the lifecycle transitions of one evaluation pass.
type EvaluateResult struct {
	Counts

	Opened       int
	Reopened     int
	Resolved     int
	Implemented  int
	OpenFindings []string
}

// LogManager runs the detectors over project groups and maintains one log
// entry per finding name.
type LogManager struct {
	access    *StoreAccess
	detectors []Detector
	logger    Logger
}

func NewLogManager(access *StoreAccess, logger Logger) *LogManager {
	return &LogManager{access: access, detectors: Detectors, logger: logger}
}

// Evaluate applies every detector to every group and moves each log entry
// through its lifecycle. Open entries no detector produced any more, because
// their group or folder type is gone, are resolved. Log entries are never
// archived.
func (m *LogManager) Evaluate(ctx context.Context, groups []*ProjectGroup, scanDate time.Time) (*EvaluateResult, error) {
	result := &EvaluateResult{}
	stale := func(existing *Record) (Properties, Action) {
		props, action, tr := NextState(existing, Finding{Name: existing.Name()}, "", scanDate)
		if tr == TransitionResolved {
			result.Resolved++
			m.logger.Debug("stale log resolved", "name", existing.Name(), "id", existing.ID)
		}
		return props, action
	}
	counts, err := m.access.ReconcileNamed(ctx, RelLogEntries, Filter{}, stale, func(apply ApplyFunc) error {
		for _, g := range groups {
			for _, detect := range m.detectors {
				for _, f := range detect(g) {
					var transition Transition
					_, err := apply(f.Name, func(existing *Record) (Properties, Action) {
						props, action, tr := NextState(existing, f, g.Project.ID, scanDate)
						transition = tr
						return props, action
					})
					if err != nil {
						return fmt.Errorf("evaluating %s: %w", f.Name, err)
					}
					result.record(transition, f)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Counts = counts

	m.logger.Info("anomalies evaluated",
		"groups", len(groups),
		"opened", result.Opened,
		"reopened", result.Reopened,
		"resolved", result.Resolved,
		"open", len(result.OpenFindings))
	return result, nil
}

func (r *EvaluateResult) record(t Transition, f Finding) {
	switch t {
	case TransitionOpened:
		r.Opened++
	case TransitionReopened:
		r.Reopened++
	case TransitionResolved:
		r.Resolved++
	case TransitionKept:
		r.Implemented++
	}
	if f.Fire && t != TransitionKept && t != TransitionNone {
		r.OpenFindings = append(r.OpenFindings, f.Name)
	}
}
