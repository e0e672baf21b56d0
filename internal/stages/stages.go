// Package stages holds the calibration stage implementations the standard
// recipes reference. Each stage builds toolkit jobs from the Context it is
// handed and returns its mutations in the Result; nothing here writes to the
// Context directly.
package stages

import "github.com/sidereal-data/reduction.report/internal/pipeline"

// RegisterStandard registers the standard calibration stages.
func RegisterStandard(reg *pipeline.Registry) {
	reg.Register(&ImportData{})
	reg.Register(&FlagDeterministic{})
	reg.Register(&RefAnt{})
	reg.Register(&Bandpass{})
	reg.Register(&GainCal{})
	reg.Register(&ApplyCal{})
}
