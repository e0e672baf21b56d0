package cal

import (
	"strconv"
	"strings"
)

// CalTo is a data-selection predicate: where a calibration artifact applies.
// Each selector is a comma-separated list; the empty string is a wildcard
// matching anything. Immutable once built.
type CalTo struct {
	Vis     string // measurement-set name
	Field   string // field names or IDs
	Spw     string // real spectral-window IDs
	Antenna string // antenna names or IDs
	Intent  string // observing intents
}

// Validate checks the selection strings. Spectral-window selectors must be
// comma-separated non-negative integers; other selectors are free-form lists
// but must not contain empty elements ("J0423,,NGC1333").
func (t CalTo) Validate() error {
	if err := validateList("field", t.Field); err != nil {
		return err
	}
	if err := validateList("antenna", t.Antenna); err != nil {
		return err
	}
	if err := validateList("intent", t.Intent); err != nil {
		return err
	}
	if t.Spw == "" {
		return nil
	}
	for _, part := range strings.Split(t.Spw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return &ValidationError{Field: "spw", Value: t.Spw, Reason: "elements must be integers"}
		}
		if n < 0 {
			return &ValidationError{Field: "spw", Value: t.Spw, Reason: "spectral window IDs cannot be negative"}
		}
	}
	return nil
}

func validateList(field, value string) error {
	if value == "" {
		return nil
	}
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			return &ValidationError{Field: field, Value: value, Reason: "empty list element"}
		}
	}
	return nil
}

// Contains reports whether this selection covers the query selection: for
// every selector, either this side is a wildcard, the query is a wildcard,
// or the query's elements are a subset of this side's.
func (t CalTo) Contains(query CalTo) bool {
	return selectorContains(t.Vis, query.Vis) &&
		selectorContains(t.Field, query.Field) &&
		selectorContains(t.Spw, query.Spw) &&
		selectorContains(t.Antenna, query.Antenna) &&
		selectorContains(t.Intent, query.Intent)
}

func selectorContains(have, want string) bool {
	if have == "" || want == "" {
		return true
	}
	haveSet := splitSelector(have)
	for _, w := range splitSelector(want) {
		found := false
		for _, h := range haveSet {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitSelector(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (t CalTo) String() string {
	var b strings.Builder
	writeSel := func(name, val string) {
		if val == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(val)
	}
	writeSel("vis", t.Vis)
	writeSel("field", t.Field)
	writeSel("spw", t.Spw)
	writeSel("antenna", t.Antenna)
	writeSel("intent", t.Intent)
	if b.Len() == 0 {
		return "<all data>"
	}
	return b.String()
}
