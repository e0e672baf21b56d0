package stages

import (
	"context"

	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// GainCal solves for time-dependent complex gains on the phase calibrator.
// Runs after bandpass so the per-channel shape is already in the registry
// ahead of it.
type GainCal struct{}

func (*GainCal) Name() string { return "gaincal" }
func (*GainCal) PerMS() bool  { return true }

func (s *GainCal) Run(ctx context.Context, env *pipeline.Env, ms *domain.MeasurementSet) (*pipeline.Result, error) {
	return runSolve(ctx, env, ms, solveSpec{
		stage:   s.Name(),
		task:    "gaincal",
		intent:  "PHASE",
		calType: "gaincal",
		interp:  "linear",
		calWt:   false,
		solint:  env.StringParam("solint", "int"),
	})
}
