package weblog

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// qaTimelinePNG renders the QA score over stage number as a static PNG, for
// embedding in exported reports where the echarts HTML cannot go.
func qaTimelinePNG(recs []pipeline.StageRecord) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "QA score by stage"
	p.X.Label.Text = "stage"
	p.Y.Label.Text = "QA score"
	p.Y.Min = 0
	p.Y.Max = 1.05

	pts := make(plotter.XYs, len(recs))
	for i, rec := range recs {
		pts[i] = plotter.XY{X: float64(rec.StageNumber), Y: rec.QAScore}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build QA line: %w", err)
	}
	line.Color = color.RGBA{R: 0x1a, G: 0x98, B: 0x50, A: 0xff}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build QA points: %w", err)
	}

	p.Add(line, scatter)

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render QA plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
