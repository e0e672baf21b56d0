package stages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// FlagDeterministic applies the deterministic flags every reduction starts
// with: autocorrelations, shadowed antennas, band edges, and any
// observatory-supplied flag commands. No heuristics; the toolkit's flagdata
// task does the work.
type FlagDeterministic struct{}

func (*FlagDeterministic) Name() string { return "flagdeterministic" }
func (*FlagDeterministic) PerMS() bool  { return true }

func (s *FlagDeterministic) Run(ctx context.Context, env *pipeline.Env, ms *domain.MeasurementSet) (*pipeline.Result, error) {
	edge := env.StringParam("edgespw", "true")
	fracedge := env.FloatParam("fracspw", 0.0625)

	job := engine.Job{
		Task: "flagdata",
		Vis:  ms.Path,
		Params: map[string]any{
			"autocorr": true,
			"shadow":   true,
			"edgespw":  edge,
			"fracspw":  fracedge,
		},
	}

	out, err := env.Engine.Invoke(ctx, job)
	if err != nil {
		return nil, err
	}

	res := &pipeline.Result{
		Stage:  s.Name(),
		Status: pipeline.StatusSuccess,
		Vis:    []string{ms.Name},
		Inputs: map[string]string{"edgespw": edge, "fracspw": fmt.Sprintf("%g", fracedge)},
		Log:    out.Log,
	}

	frac, ok := flaggedFraction(out.Log)
	if !ok {
		res.QA = append(res.QA, pipeline.QAScore{
			Score:    0.9,
			ShortMsg: "flagging",
			LongMsg:  "toolkit did not report a flagged fraction",
		})
		return res, nil
	}

	// Deterministic flagging normally removes a few percent. Most of the
	// data disappearing points at shadowing or a bad SDM, so the score
	// degrades with the flagged fraction.
	score := 1.0 - frac
	if score < 0 {
		score = 0
	}
	res.QA = append(res.QA, pipeline.QAScore{
		Score:    score,
		ShortMsg: "flagging",
		LongMsg:  fmt.Sprintf("%.1f%% of data flagged deterministically", frac*100),
	})
	return res, nil
}

// flaggedFraction extracts the toolkit's "flagged fraction: 0.042" line.
func flaggedFraction(log []string) (float64, bool) {
	for _, line := range log {
		rest, ok := strings.CutPrefix(line, "flagged fraction: ")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
