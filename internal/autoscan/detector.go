// Package autoscan decides which mounted volumes to scan without a user
// naming them: production volumes that just appeared, and mounted ones whose
// last scan is older than the rescan interval.
package autoscan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"sl-go/internal/config"
	"sl-go/internal/sl"
)

// Reason says why a volume was picked.
type Reason string

const (
	ReasonNew    Reason = "new"
	ReasonRescan Reason = "rescan"
)

// Candidate is one volume to scan.
type Candidate struct {
	Name     string
	Path     string
	Reason   Reason
	LastScan time.Time // zero when never scanned
}

// Plan is the outcome of one detection run. Mounted must be handed to Commit
// once the candidates were processed.
type Plan struct {
	Mounted    []string
	Candidates []Candidate
	Ignored    []string // mounted but not matching any pattern
}

// Detector compares the volumes mounted under a root directory with what the
// local database remembers from the previous run.
type Detector struct {
	root     string
	patterns []*regexp.Regexp
	ignored  []string
	interval time.Duration
	db       sl.Database
	clock    sl.Clock
	logger   sl.Logger
}

// NewDetector creates a Detector. Empty config fields fall back to the defaults.
func NewDetector(cfg config.AutoScanConfig, db sl.Database, clock sl.Clock, logger sl.Logger) (*Detector, error) {
	raw := cfg.Patterns
	if len(raw) == 0 {
		raw = config.DefaultVolumePatterns
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid volume pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	d := &Detector{
		root:     cfg.VolumesRoot,
		patterns: patterns,
		ignored:  cfg.IgnoredVolumes,
		interval: cfg.RescanInterval.Duration,
		db:       db,
		clock:    clock,
		logger:   logger,
	}
	if d.root == "" {
		d.root = "/Volumes"
	}
	if d.ignored == nil {
		d.ignored = config.DefaultIgnoredVolumes
	}
	if d.interval <= 0 {
		d.interval = config.DefaultRescanInterval
	}
	return d, nil
}

// Matches reports whether a volume name is one that is scanned automatically.
func (d *Detector) Matches(name string) bool {
	for _, re := range d.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// MountedVolumes lists the directories under the root, minus system volumes,
// sorted by name. A missing root means nothing is mounted.
func (d *Detector) MountedVolumes() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || slices.Contains(d.ignored, e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Plan picks the volumes to scan now. New volumes come first, then rescans,
// each group sorted by name.
func (d *Detector) Plan() (*Plan, error) {
	mounted, err := d.MountedVolumes()
	if err != nil {
		return nil, err
	}
	states, err := d.db.ListVolumeStates()
	if err != nil {
		return nil, fmt.Errorf("loading volume states: %w", err)
	}
	known := make(map[string]*sl.VolumeState, len(states))
	for _, s := range states {
		known[s.Name] = s
	}

	plan := &Plan{Mounted: mounted}
	var rescans []Candidate
	now := d.clock.Now()
	for _, name := range mounted {
		if !d.Matches(name) {
			plan.Ignored = append(plan.Ignored, name)
			continue
		}
		c := Candidate{Name: name, Path: filepath.Join(d.root, name)}
		state := known[name]
		if state != nil && state.LastScanAt.Valid {
			c.LastScan = state.LastScanAt.Time
		}

		switch {
		case state == nil || !state.Mounted:
			c.Reason = ReasonNew
			plan.Candidates = append(plan.Candidates, c)
		case c.LastScan.IsZero() || now.Sub(c.LastScan) >= d.interval:
			c.Reason = ReasonRescan
			rescans = append(rescans, c)
		}
	}
	plan.Candidates = append(plan.Candidates, rescans...)

	d.logger.Debug("auto-scan planned",
		"mounted", len(mounted),
		"candidates", len(plan.Candidates),
		"ignored", len(plan.Ignored))
	return plan, nil
}

// Commit remembers which volumes were mounted so the next run can tell new
// volumes apart.
func (d *Detector) Commit(plan *Plan) error {
	if err := d.db.SetMountedVolumes(plan.Mounted); err != nil {
		return fmt.Errorf("saving mounted volumes: %w", err)
	}
	return nil
}
