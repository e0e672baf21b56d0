// Package pipeline owns the run Context (domain model + calibration registry
// + accumulated results), its checkpoint/resume lifecycle, and the stage
// execution harness that drives a recipe against it.
package pipeline

import (
	"fmt"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
)

// Status is the outcome of one stage invocation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// QAScore grades one aspect of a stage outcome on [0,1]. Scores below 0.66
// flag the stage for reviewer attention in the weblog.
type QAScore struct {
	Score    float64
	ShortMsg string
	LongMsg  string
}

// Result is the outcome of one stage invocation over one dataset (or over
// the whole run for multi-vis stages). The harness accepts it into the
// Context exactly once; after acceptance nothing mutates it except the log
// cap applied when it is written to disk.
type Result struct {
	Stage string

	// Vis names the datasets this result covers.
	Vis []string

	// Inputs records the stage parameters actually used, for the weblog.
	Inputs map[string]string

	Status Status

	// Err carries the failure message when Status is StatusFailure. Stored
	// as a string so results serialize cleanly.
	Err string

	// CalEntries are registry additions to merge into the Context's
	// calibration state on acceptance.
	CalEntries []cal.CalApplication

	// AppliedTo lists selections whose active calibration entries this
	// stage consumed (an apply step ran).
	AppliedTo []cal.CalTo

	// Imported holds datasets to register with the observing run
	// (import stages only).
	Imported []*domain.MeasurementSet

	// RefAntennas holds per-dataset reference-antenna rankings to annotate
	// (keyed by measurement-set name).
	RefAntennas map[string][]string

	// DataTypes holds per-dataset data-type annotations to register.
	DataTypes []DataTypeMark

	QA []QAScore

	// Log holds the toolkit log excerpt for this invocation.
	Log []string

	StartedUnixNanos int64
	EndedUnixNanos   int64
}

// DataTypeMark records that fields of a dataset now carry a data type.
type DataTypeMark struct {
	Vis      string
	Type     domain.DataType
	FieldIDs []int
}

// Failed reports whether the stage failed.
func (r *Result) Failed() bool {
	return r.Status == StatusFailure
}

// MinQAScore returns the lowest QA score, or 1.0 when the stage produced no
// scores.
func (r *Result) MinQAScore() float64 {
	min := 1.0
	for _, q := range r.QA {
		if q.Score < min {
			min = q.Score
		}
	}
	return min
}

func (r *Result) String() string {
	return fmt.Sprintf("%s %v: %s (qa %.2f)", r.Stage, r.Vis, r.Status, r.MinQAScore())
}
