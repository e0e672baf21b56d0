package cal

import "fmt"

// ValidationError reports a malformed selection predicate. Selection strings
// come from recipe files and operator input, so the message names the field
// and the offending value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s selection %q: %s", e.Field, e.Value, e.Reason)
}

// IncompatibleStateError reports an attempt to merge two registries written
// under different schema versions. The caller must abort the stage; there is
// no safe automatic upgrade during a merge.
type IncompatibleStateError struct {
	Have int
	Want int
}

func (e *IncompatibleStateError) Error() string {
	return fmt.Sprintf("cannot merge calibration state schema v%d into v%d", e.Want, e.Have)
}
