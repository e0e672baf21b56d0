package stages

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// RefAnt ranks reference-antenna candidates per dataset. Central antennas
// make the best phase reference, so the score is the normalized closeness to
// the array centre; the full ranking is stored so downstream solves can fall
// back when the first choice drops out.
type RefAnt struct{}

func (*RefAnt) Name() string { return "refant" }
func (*RefAnt) PerMS() bool  { return true }

func (s *RefAnt) Run(ctx context.Context, env *pipeline.Env, ms *domain.MeasurementSet) (*pipeline.Result, error) {
	if len(ms.Antennas) == 0 {
		return nil, fmt.Errorf("refant: %s has no antennas", ms.Name)
	}

	type candidate struct {
		name  string
		score float64
	}

	offsets := make([]float64, len(ms.Antennas))
	for i, a := range ms.Antennas {
		offsets[i] = a.OffsetFromCentreM
	}
	mean, std := stat.MeanStdDev(offsets, nil)

	cands := make([]candidate, len(ms.Antennas))
	for i, a := range ms.Antennas {
		score := 1.0
		if std > 0 {
			// Closer than average scores above 1, further below.
			score = 1.0 - stat.StdScore(a.OffsetFromCentreM, mean, std)/3.0
		}
		cands[i] = candidate{name: a.Name, score: score}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	ranking := make([]string, len(cands))
	for i, c := range cands {
		ranking[i] = c.name
	}

	res := &pipeline.Result{
		Stage:       s.Name(),
		Status:      pipeline.StatusSuccess,
		Vis:         []string{ms.Name},
		RefAntennas: map[string][]string{ms.Name: ranking},
		Log: []string{
			fmt.Sprintf("%s: ranked %d antennas, best %s (offset spread %.1f m)",
				ms.Name, len(ranking), ranking[0], std),
		},
	}
	res.QA = append(res.QA, pipeline.QAScore{
		Score:    1.0,
		ShortMsg: "refant",
		LongMsg:  fmt.Sprintf("reference antenna %s selected for %s", ranking[0], ms.Name),
	})
	return res, nil
}
