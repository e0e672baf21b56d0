package stages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// Bandpass solves for the per-channel bandpass on the bandpass calibrator
// and registers the resulting table for later application.
type Bandpass struct{}

func (*Bandpass) Name() string { return "bandpass" }
func (*Bandpass) PerMS() bool  { return true }

func (s *Bandpass) Run(ctx context.Context, env *pipeline.Env, ms *domain.MeasurementSet) (*pipeline.Result, error) {
	return runSolve(ctx, env, ms, solveSpec{
		stage:   s.Name(),
		task:    "bandpass",
		intent:  "BANDPASS",
		calType: "bandpass",
		interp:  "linear,linear",
		calWt:   true,
		solint:  env.StringParam("solint", "inf"),
	})
}

// solveSpec parameterizes the shared solve-and-register flow bandpass and
// gaincal both follow.
type solveSpec struct {
	stage   string
	task    string
	intent  string
	calType string
	interp  string
	calWt   bool
	solint  string
}

func runSolve(ctx context.Context, env *pipeline.Env, ms *domain.MeasurementSet, spec solveSpec) (*pipeline.Result, error) {
	fields := ms.FieldsWithIntent(spec.intent)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %s has no field with intent %s", spec.stage, ms.Name, spec.intent)
	}
	fieldSel := fieldSelection(fields)

	refant := ""
	if len(ms.RefAntennas) > 0 {
		refant = strings.Join(ms.RefAntennas, ",")
	}

	job := engine.Job{
		Task: spec.task,
		Vis:  ms.Path,
		Params: map[string]any{
			"field":  fieldSel,
			"solint": spec.solint,
			"refant": refant,
		},
	}

	out, err := env.Engine.Invoke(ctx, job)
	if err != nil {
		return nil, err
	}
	if len(out.Tables) == 0 {
		return nil, fmt.Errorf("%s: toolkit produced no calibration table for %s", spec.stage, ms.Name)
	}

	res := &pipeline.Result{
		Stage:  spec.stage,
		Status: pipeline.StatusSuccess,
		Vis:    []string{ms.Name},
		Inputs: map[string]string{"field": fieldSel, "solint": spec.solint, "refant": refant},
		Log:    out.Log,
	}

	for _, tbl := range out.Tables {
		res.CalEntries = append(res.CalEntries, cal.CalApplication{
			To: cal.CalTo{Vis: ms.Name},
			From: cal.CalFrom{
				Table:  tbl,
				Type:   spec.calType,
				Interp: spec.interp,
				CalWt:  spec.calWt,
			},
		})
	}

	res.QA = append(res.QA, solutionQA(spec.stage, out.Log))
	return res, nil
}

func fieldSelection(fields []domain.Field) string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = strconv.Itoa(f.ID)
	}
	return strings.Join(ids, ",")
}

// solutionQA grades a solve by the fraction of flagged solutions the toolkit
// reports ("flagged solutions: 12/480"). No report means no evidence of
// trouble, scored just below perfect.
func solutionQA(stage string, log []string) pipeline.QAScore {
	for _, line := range log {
		rest, ok := strings.CutPrefix(line, "flagged solutions: ")
		if !ok {
			continue
		}
		num, den, found := strings.Cut(strings.TrimSpace(rest), "/")
		if !found {
			break
		}
		n, err1 := strconv.Atoi(num)
		d, err2 := strconv.Atoi(den)
		if err1 != nil || err2 != nil || d == 0 {
			break
		}
		frac := float64(n) / float64(d)
		return pipeline.QAScore{
			Score:    1.0 - frac,
			ShortMsg: stage,
			LongMsg:  fmt.Sprintf("%.1f%% of solutions flagged", frac*100),
		}
	}
	return pipeline.QAScore{Score: 0.95, ShortMsg: stage, LongMsg: "solve completed"}
}
