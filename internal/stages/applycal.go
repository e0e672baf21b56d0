package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// ApplyCal applies every active calibration entry for a dataset: exports
// the registry's instruction list to a callibrary file, hands it to the
// toolkit's applycal task, and retires the consumed entries. Calibrated
// fields gain the REGCAL data type.
type ApplyCal struct{}

func (*ApplyCal) Name() string { return "applycal" }
func (*ApplyCal) PerMS() bool  { return true }

func (s *ApplyCal) Run(ctx context.Context, env *pipeline.Env, ms *domain.MeasurementSet) (*pipeline.Result, error) {
	sel := cal.CalTo{Vis: ms.Name}

	apps, err := env.Context.CalState.Get(sel)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, fmt.Errorf("applycal: no active calibration entries for %s", ms.Name)
	}

	// The instruction list goes through a file: the toolkit reads it, and
	// it doubles as the run's record of what was applied.
	lib := (&cal.CalState{Schema: cal.SchemaVersion, Active: apps}).Export()
	libPath := filepath.Join(env.Context.ProductsDir, ms.Name+".callibrary")
	if err := os.WriteFile(libPath, []byte(lib), 0o644); err != nil {
		return nil, fmt.Errorf("applycal: failed to write callibrary for %s: %w", ms.Name, err)
	}

	job := engine.Job{
		Task: "applycal",
		Vis:  ms.Path,
		Params: map[string]any{
			"callib": libPath,
		},
	}
	out, err := env.Engine.Invoke(ctx, job)
	if err != nil {
		return nil, err
	}

	fieldIDs := make([]int, len(ms.Fields))
	for i, f := range ms.Fields {
		fieldIDs[i] = f.ID
	}

	res := &pipeline.Result{
		Stage:     s.Name(),
		Status:    pipeline.StatusSuccess,
		Vis:       []string{ms.Name},
		Inputs:    map[string]string{"callib": libPath},
		AppliedTo: []cal.CalTo{sel},
		DataTypes: []pipeline.DataTypeMark{
			{Vis: ms.Name, Type: domain.DataTypeRegcalAll, FieldIDs: fieldIDs},
		},
		Log: out.Log,
	}
	res.QA = append(res.QA, pipeline.QAScore{
		Score:    1.0,
		ShortMsg: "applycal",
		LongMsg:  fmt.Sprintf("%d calibration table(s) applied to %s", len(apps), ms.Name),
	})
	return res, nil
}
