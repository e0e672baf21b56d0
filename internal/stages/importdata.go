package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// ImportData registers datasets with the run: runs the toolkit's metadata
// listing over each path from the recipe and builds the domain model. Every
// field starts with the RAW data type.
type ImportData struct{}

func (*ImportData) Name() string { return "importdata" }

// ImportData runs once over the whole run; it is what creates the datasets
// the per-MS stages fan out over.
func (*ImportData) PerMS() bool { return false }

func (s *ImportData) Run(ctx context.Context, env *pipeline.Env, _ *domain.MeasurementSet) (*pipeline.Result, error) {
	paths, err := visPaths(env)
	if err != nil {
		return nil, err
	}

	res := &pipeline.Result{
		Stage:  s.Name(),
		Status: pipeline.StatusSuccess,
		Inputs: map[string]string{"vis": strings.Join(paths, ",")},
	}

	for _, path := range paths {
		doc, err := env.Engine.Summary(ctx, path)
		if err != nil {
			return nil, err
		}
		ms, err := domain.ParseSummary(doc)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
		if ms.Path == "" {
			ms.Path = path
		}

		fieldIDs := make([]int, len(ms.Fields))
		for i, f := range ms.Fields {
			fieldIDs[i] = f.ID
		}

		res.Imported = append(res.Imported, ms)
		res.Vis = append(res.Vis, ms.Name)
		res.DataTypes = append(res.DataTypes, pipeline.DataTypeMark{
			Vis: ms.Name, Type: domain.DataTypeRaw, FieldIDs: fieldIDs,
		})
		res.Log = append(res.Log, fmt.Sprintf("imported %s: %d antennas, %d spws, %d scans",
			ms.Name, len(ms.Antennas), len(ms.SpectralWindows), len(ms.Scans)))
	}

	res.QA = append(res.QA, pipeline.QAScore{
		Score:    1.0,
		ShortMsg: "import",
		LongMsg:  fmt.Sprintf("%d dataset(s) imported", len(res.Imported)),
	})
	return res, nil
}

// visPaths reads the dataset list from the recipe parameters. Accepts a
// YAML list or a comma-separated string.
func visPaths(env *pipeline.Env) ([]string, error) {
	raw, ok := env.Params["vis"]
	if !ok {
		return nil, fmt.Errorf("importdata requires a vis parameter")
	}

	var paths []string
	switch v := raw.(type) {
	case []any:
		for _, e := range v {
			paths = append(paths, fmt.Sprintf("%v", e))
		}
	case []string:
		paths = v
	case string:
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
	default:
		return nil, fmt.Errorf("importdata vis parameter must be a list or string, got %T", raw)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("importdata vis parameter is empty")
	}
	for _, p := range paths {
		if filepath.Base(p) == "." {
			return nil, fmt.Errorf("importdata vis parameter has an invalid path %q", p)
		}
	}
	return paths, nil
}
