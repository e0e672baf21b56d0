package cal

import "slices"

// SchemaVersion is written into every CalState and checked on merge. Bump it
// whenever the CalFrom/CalTo field set changes shape.
const SchemaVersion = 1

// CalApplication pairs one artifact with the selection it applies to. It is
// the atomic unit of the registry.
type CalApplication struct {
	To   CalTo
	From CalFrom
}

// CalState is the ordered registry of calibration applications. Active
// entries await the apply step; applied entries have been consumed. Within
// each list, insertion order is the application order.
type CalState struct {
	Schema  int
	Active  []CalApplication
	Applied []CalApplication
}

// NewState returns an empty registry at the current schema version.
func NewState() *CalState {
	return &CalState{Schema: SchemaVersion}
}

// Add appends an artifact to the active list under the given selection. It
// never overwrites or reorders: registering the same artifact under an
// overlapping selection yields two entries, both returned by Get.
func (s *CalState) Add(to CalTo, from CalFrom) error {
	if err := to.Validate(); err != nil {
		return err
	}
	s.Active = append(s.Active, CalApplication{To: to, From: from})
	return nil
}

// Get returns the active applications whose selection covers the query, in
// insertion order. A query matching nothing returns an empty slice, not an
// error.
func (s *CalState) Get(query CalTo) ([]CalApplication, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var out []CalApplication
	for _, app := range s.Active {
		if app.To.Contains(query) {
			out = append(out, app)
		}
	}
	return out, nil
}

// Merge appends the other registry's entries after this one's, preserving
// each side's internal order. Nothing is deduplicated: per-dataset worker
// jobs produce disjoint entries, and duplicates from a retried job are the
// caller's problem to Trim. Registries with different schema versions do
// not merge.
func (s *CalState) Merge(other *CalState) error {
	if other == nil {
		return nil
	}
	if s.Schema != other.Schema {
		return &IncompatibleStateError{Have: s.Schema, Want: other.Schema}
	}
	s.Active = append(s.Active, other.Active...)
	s.Applied = append(s.Applied, other.Applied...)
	return nil
}

// MarkApplied moves active entries whose selection covers the query to the
// applied list. Entries already applied stay where they are, so re-marking
// is a no-op rather than an error.
func (s *CalState) MarkApplied(query CalTo) error {
	if err := query.Validate(); err != nil {
		return err
	}
	var remaining []CalApplication
	for _, app := range s.Active {
		if app.To.Contains(query) {
			s.Applied = append(s.Applied, app)
		} else {
			remaining = append(remaining, app)
		}
	}
	s.Active = remaining
	return nil
}

// Trim returns a new registry containing only the applications the keep
// predicate accepts, preserving order. The receiver is left untouched so an
// interactive session can retry with a different predicate.
func (s *CalState) Trim(keep func(CalApplication) bool) *CalState {
	out := &CalState{Schema: s.Schema}
	for _, app := range s.Active {
		if keep(app) {
			out.Active = append(out.Active, app)
		}
	}
	for _, app := range s.Applied {
		if keep(app) {
			out.Applied = append(out.Applied, app)
		}
	}
	return out
}

// Clone returns a deep copy of the registry.
func (s *CalState) Clone() *CalState {
	return &CalState{
		Schema:  s.Schema,
		Active:  slices.Clone(s.Active),
		Applied: slices.Clone(s.Applied),
	}
}
