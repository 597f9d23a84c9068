package notion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sl-go/internal/sl"
)

type richText struct {
	PlainText string `json:"plain_text"`
}

type option struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type reference struct {
	ID string `json:"id"`
}

// propertyValue is a page property as the API returns it.
type propertyValue struct {
	Type        string      `json:"type"`
	Title       []richText  `json:"title"`
	RichText    []richText  `json:"rich_text"`
	Number      *float64    `json:"number"`
	Date        *dateValue  `json:"date"`
	Select      *option     `json:"select"`
	MultiSelect []option    `json:"multi_select"`
	Relation    []reference `json:"relation"`
	HasMore     bool        `json:"has_more"`
	Checkbox    bool        `json:"checkbox"`
}

type parentRef struct {
	Type       string `json:"type"`
	DatabaseID string `json:"database_id"`
	PageID     string `json:"page_id"`
}

type page struct {
	Object     string                   `json:"object"`
	ID         string                   `json:"id"`
	Archived   bool                     `json:"archived"`
	Parent     parentRef                `json:"parent"`
	Properties map[string]propertyValue `json:"properties"`
}

type queryResponse struct {
	Results    []page `json:"results"`
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

type database struct {
	Object     string                     `json:"object"`
	ID         string                     `json:"id"`
	Archived   bool                       `json:"archived"`
	Parent     parentRef                  `json:"parent"`
	Title      []richText                 `json:"title"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type searchResponse struct {
	Results    []database `json:"results"`
	NextCursor string     `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

func textContent(s string) []map[string]any {
	if s == "" {
		return []map[string]any{}
	}
	return []map[string]any{{"type": "text", "text": map[string]any{"content": s}}}
}

// encodeProperties converts typed values into the API's page property objects.
func encodeProperties(props sl.Properties) map[string]any {
	out := make(map[string]any, len(props))
	for name, v := range props {
		out[name] = encodeValue(v)
	}
	return out
}

func encodeValue(v sl.Value) map[string]any {
	switch v.Kind {
	case sl.KindTitle:
		return map[string]any{"title": textContent(v.Text)}
	case sl.KindText:
		return map[string]any{"rich_text": textContent(v.Text)}
	case sl.KindNumber:
		if v.Number == nil {
			return map[string]any{"number": nil}
		}
		return map[string]any{"number": *v.Number}
	case sl.KindDate:
		if v.Text == "" {
			return map[string]any{"date": nil}
		}
		return map[string]any{"date": map[string]any{"start": v.Text}}
	case sl.KindSelect:
		if v.Text == "" {
			return map[string]any{"select": nil}
		}
		return map[string]any{"select": map[string]any{"name": v.Text}}
	case sl.KindMultiSelect:
		options := make([]map[string]any, len(v.Items))
		for i, name := range v.Items {
			options[i] = map[string]any{"name": name}
		}
		return map[string]any{"multi_select": options}
	case sl.KindRelation:
		refs := make([]map[string]any, len(v.Items))
		for i, id := range v.Items {
			refs[i] = map[string]any{"id": id}
		}
		return map[string]any{"relation": refs}
	case sl.KindCheckbox:
		return map[string]any{"checkbox": v.Bool}
	}
	return map[string]any{}
}

func plainText(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return b.String()
}

// decodeProperties converts API page properties into typed values. Unknown
// property types are dropped.
func decodeProperties(raw map[string]propertyValue) sl.Properties {
	out := make(sl.Properties, len(raw))
	for name, p := range raw {
		switch sl.ValueKind(p.Type) {
		case sl.KindTitle:
			out[name] = sl.Title(plainText(p.Title))
		case sl.KindText:
			out[name] = sl.Text(plainText(p.RichText))
		case sl.KindNumber:
			v := sl.Value{Kind: sl.KindNumber}
			if p.Number != nil {
				n := *p.Number
				v.Number = &n
			}
			out[name] = v
		case sl.KindDate:
			start := ""
			if p.Date != nil {
				start = normalizeDate(p.Date.Start)
			}
			out[name] = sl.Date(start)
		case sl.KindSelect:
			selected := ""
			if p.Select != nil {
				selected = p.Select.Name
			}
			out[name] = sl.Select(selected)
		case sl.KindMultiSelect:
			names := make([]string, len(p.MultiSelect))
			for i, o := range p.MultiSelect {
				names[i] = o.Name
			}
			out[name] = sl.MultiSelect(names...)
		case sl.KindRelation:
			ids := make([]string, len(p.Relation))
			for i, r := range p.Relation {
				ids[i] = r.ID
			}
			v := sl.RelationTo(ids...)
			// Page reads list at most 25 related ids.
			v.Truncated = p.HasMore
			out[name] = v
		case sl.KindCheckbox:
			out[name] = sl.Checkbox(p.Checkbox)
		}
	}
	return out
}

// normalizeDate rewrites API timestamps ("2024-05-01T10:00:00.000+00:00") to
// the RFC 3339 UTC form sl.DateTime writes, so stored and desired values compare equal.
func normalizeDate(s string) string {
	if len(s) <= len(time.DateOnly) {
		return s
	}
	t, err := sl.ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

// filterBody builds a database query filter for one relation.
func filterBody(rel sl.Relation, f sl.Filter) (map[string]any, error) {
	var kind sl.ValueKind
	for _, prop := range sl.Schema(rel) {
		if prop.Name == f.Property {
			kind = prop.Kind
		}
	}
	if kind == "" {
		return nil, fmt.Errorf("relation %s has no property %q", rel, f.Property)
	}
	if f.Contains != "" {
		if kind != sl.KindRelation {
			return nil, fmt.Errorf("property %q is not a relation", f.Property)
		}
		return map[string]any{"property": f.Property, "relation": map[string]any{"contains": f.Contains}}, nil
	}
	switch kind {
	case sl.KindTitle, sl.KindText, sl.KindSelect:
		return map[string]any{"property": f.Property, string(kind): map[string]any{"equals": f.Equals}}, nil
	}
	return nil, fmt.Errorf("property %q cannot be filtered by equality", f.Property)
}

// propertySchema builds the database property declarations for rel. Relation
// properties resolve their target through databaseIDs; targets not yet known
// are left out.
func propertySchema(rel sl.Relation, databaseIDs map[sl.Relation]string) map[string]any {
	out := make(map[string]any)
	for _, prop := range sl.Schema(rel) {
		switch prop.Kind {
		case sl.KindNumber:
			out[prop.Name] = map[string]any{"number": map[string]any{"format": "number"}}
		case sl.KindSelect, sl.KindMultiSelect:
			options := make([]map[string]any, len(prop.Options))
			for i, name := range prop.Options {
				options[i] = map[string]any{"name": name}
			}
			out[prop.Name] = map[string]any{string(prop.Kind): map[string]any{"options": options}}
		case sl.KindRelation:
			target, ok := databaseIDs[prop.Target]
			if !ok {
				continue
			}
			out[prop.Name] = map[string]any{"relation": map[string]any{
				"database_id":     target,
				"type":            "single_property",
				"single_property": map[string]any{},
			}}
		default:
			out[prop.Name] = map[string]any{string(prop.Kind): map[string]any{}}
		}
	}
	return out
}
