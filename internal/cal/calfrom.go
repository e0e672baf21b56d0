// Package cal maintains the calibration-state registry: the ordered record of
// which calibration artifacts apply to which data selections. The registry is
// the ground truth the apply-step instruction list is generated from, so
// insertion order is load-bearing (bandpass before gain, etc.) and nothing in
// this package reorders or deduplicates entries.
package cal

import (
	"fmt"
	"slices"
	"strings"
)

// CalFrom describes one calibration artifact to apply: the table on disk,
// its calibration type, and the apply-step parameters. Immutable once built.
type CalFrom struct {
	// Table is the on-disk path of the calibration table.
	Table string

	// Type is the calibration type, e.g. "bandpass", "gaincal", "tsys".
	Type string

	// Interp is the interpolation rule for the apply step, e.g.
	// "linear,linear" or "nearest".
	Interp string

	// CalWt indicates whether data weights are calibrated alongside the
	// visibilities.
	CalWt bool

	// SpwMap remaps calibration solutions onto data spectral windows:
	// SpwMap[i] is the calibration spw whose solution applies to data spw i.
	// Empty means the identity mapping.
	SpwMap []int
}

func (f CalFrom) String() string {
	return fmt.Sprintf("%s(%s)", f.Type, f.Table)
}

// spwMapString renders the spectral-window remapping in the engine's
// bracketed list form, e.g. "[0,1,1,2]".
func (f CalFrom) spwMapString() string {
	parts := make([]string, len(f.SpwMap))
	for i, v := range f.SpwMap {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Equal reports whether two artifact descriptions are identical in every
// parameter. Used by trim predicates, never for deduplication on add.
func (f CalFrom) Equal(other CalFrom) bool {
	return f.Table == other.Table &&
		f.Type == other.Type &&
		f.Interp == other.Interp &&
		f.CalWt == other.CalWt &&
		slices.Equal(f.SpwMap, other.SpwMap)
}
