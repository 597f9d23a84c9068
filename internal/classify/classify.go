// Package classify matches folder names against the project naming convention
// YYYY-MM-DD_<project>_<TYPE>.
package classify

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"sl-go/internal/model"
)

// Aliases maps every recognized type suffix to its canonical type.
var Aliases = map[string]model.FolderType{
	"FOOTAGE": model.TypeFootage,
	"VIDEO":   model.TypeFootage,
	"VIDEOS":  model.TypeFootage,
	"PHOTOS":  model.TypePhotos,
	"FOTOS":   model.TypePhotos,
	"WORKING": model.TypeWorking,
	"BTS":     model.TypeBTS,
	"PROXIES": model.TypeProxies,
	"PROXY":   model.TypeProxies,
}

var (
	typedPattern   = regexp.MustCompile(`(?i)^(\d{4}-\d{2}-\d{2})_(.+?)_\s*(` + aliasAlternatives() + `)\s*$`)
	projectPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_(.+)$`)
)

func aliasAlternatives() string {
	names := make([]string, 0, len(Aliases))
	for name := range Aliases {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, "|")
}

// Classify returns the classification of a folder name, or false when the name
// does not follow the convention. A name with a type suffix is never retried
// as a PROJECT folder. The PROJECT fallback applies only when the project part
// contains no underscore, since an unknown suffix looks the same.
func Classify(name string) (*model.Classification, bool) {
	if m := typedPattern.FindStringSubmatch(name); m != nil {
		if !validDate(m[1]) {
			return nil, false
		}
		project := strings.TrimSpace(m[2])
		if project == "" {
			return nil, false
		}
		return &model.Classification{
			Date:        m[1],
			ProjectName: project,
			Type:        Aliases[strings.ToUpper(m[3])],
		}, true
	}

	if m := projectPattern.FindStringSubmatch(name); m != nil {
		if !validDate(m[1]) {
			return nil, false
		}
		project := strings.TrimSpace(m[2])
		if project == "" || strings.Contains(project, "_") {
			return nil, false
		}
		return &model.Classification{
			Date:        m[1],
			ProjectName: project,
			Type:        model.TypeProject,
		}, true
	}

	return nil, false
}

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}
