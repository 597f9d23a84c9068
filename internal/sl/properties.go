package sl

import (
	"slices"
	"time"
)

// ValueKind is the schema type of a property value.
type ValueKind string

const (
	KindTitle       ValueKind = "title"
	KindText        ValueKind = "rich_text"
	KindNumber      ValueKind = "number"
	KindDate        ValueKind = "date"
	KindSelect      ValueKind = "select"
	KindMultiSelect ValueKind = "multi_select"
	KindRelation    ValueKind = "relation"
	KindCheckbox    ValueKind = "checkbox"
)

// Value is one typed property value. Only the field matching Kind is meaningful.
// An empty Text on a date or select clears the property.
type Value struct {
	Kind   ValueKind `json:"kind"`
	Text   string    `json:"text,omitempty"`   // title, rich_text, select, date
	Number *float64  `json:"number,omitempty"` // number; nil clears
	Items  []string  `json:"items,omitempty"`  // multi_select option names, relation record ids
	Bool   bool      `json:"bool,omitempty"`   // checkbox

	// Truncated marks a relation read back with only its first ids; stores
	// cap relation ids on page reads.
	Truncated bool `json:"truncated,omitempty"`
}

func Title(s string) Value  { return Value{Kind: KindTitle, Text: s} }
func Text(s string) Value   { return Value{Kind: KindText, Text: s} }
func Select(s string) Value { return Value{Kind: KindSelect, Text: s} }

func Number(f float64) Value { return Value{Kind: KindNumber, Number: &f} }

func Checkbox(b bool) Value { return Value{Kind: KindCheckbox, Bool: b} }

func MultiSelect(options ...string) Value {
	return Value{Kind: KindMultiSelect, Items: append([]string{}, options...)}
}

func RelationTo(ids ...string) Value {
	return Value{Kind: KindRelation, Items: append([]string{}, ids...)}
}

// Date holds a calendar date in YYYY-MM-DD form. Empty clears the property.
func Date(day string) Value { return Value{Kind: KindDate, Text: day} }

// DateTime holds an instant, stored as RFC 3339 in UTC.
func DateTime(t time.Time) Value {
	if t.IsZero() {
		return Value{Kind: KindDate}
	}
	return Value{Kind: KindDate, Text: t.UTC().Format(time.RFC3339)}
}

// Equal compares two values. Multi-select and relation values compare as sets.
// A truncated relation equals any relation holding all of its ids.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		if v.Number == nil || o.Number == nil {
			return v.Number == nil && o.Number == nil
		}
		return *v.Number == *o.Number
	case KindCheckbox:
		return v.Bool == o.Bool
	case KindRelation:
		switch {
		case v.Truncated && !o.Truncated:
			return subset(v.Items, o.Items)
		case o.Truncated && !v.Truncated:
			return subset(o.Items, v.Items)
		}
		return sameSet(v.Items, o.Items)
	case KindMultiSelect:
		return sameSet(v.Items, o.Items)
	default:
		return v.Text == o.Text
	}
}

func subset(part, whole []string) bool {
	for _, id := range part {
		if !slices.Contains(whole, id) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(slices.Compact(x), slices.Compact(y))
}

// Properties maps property names to typed values.
type Properties map[string]Value

// Clone returns a shallow copy with independent slices.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		v.Items = slices.Clone(v.Items)
		if v.Number != nil {
			n := *v.Number
			v.Number = &n
		}
		out[k] = v
	}
	return out
}

// Merge copies every value from other into p, overwriting existing keys.
func (p Properties) Merge(other Properties) Properties {
	for k, v := range other {
		p[k] = v
	}
	return p
}

// Matches reports whether every property in want is present in p with an equal value.
// A stored record that matches needs no patch.
func (p Properties) Matches(want Properties) bool {
	for k, w := range want {
		have, ok := p[k]
		if !ok {
			if isEmpty(w) {
				continue
			}
			return false
		}
		if !have.Equal(w) {
			return false
		}
	}
	return true
}

func isEmpty(v Value) bool {
	switch v.Kind {
	case KindNumber:
		return v.Number == nil
	case KindCheckbox:
		return !v.Bool
	case KindMultiSelect, KindRelation:
		return len(v.Items) == 0
	default:
		return v.Text == ""
	}
}

// Text returns the string value of a title, text, select or date property.
func (p Properties) Text(name string) string {
	return p[name].Text
}

// Float returns a number property, or 0 when unset.
func (p Properties) Float(name string) float64 {
	if n := p[name].Number; n != nil {
		return *n
	}
	return 0
}

// OptionalFloat returns a number property, or nil when unset.
func (p Properties) OptionalFloat(name string) *float64 {
	if n := p[name].Number; n != nil {
		f := *n
		return &f
	}
	return nil
}

// Items returns the ids or options of a relation or multi-select property.
func (p Properties) Items(name string) []string {
	return p[name].Items
}

// First returns the first id of a relation property, or "".
func (p Properties) First(name string) string {
	if items := p[name].Items; len(items) > 0 {
		return items[0]
	}
	return ""
}

// Bool returns a checkbox property.
func (p Properties) Bool(name string) bool {
	return p[name].Bool
}

// Time parses a date property. Unset or malformed values yield the zero time.
func (p Properties) Time(name string) time.Time {
	t, _ := ParseTimestamp(p[name].Text)
	return t
}
