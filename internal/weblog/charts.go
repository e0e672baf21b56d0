package weblog

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// qaBarChart renders one bar per stage, coloured by QA score, so a reviewer
// can spot the weak stage of a run at a glance.
func qaBarChart(runID string, recs []pipeline.StageRecord) *charts.Bar {
	labels := make([]string, len(recs))
	data := make([]opts.BarData, len(recs))
	for i, rec := range recs {
		labels[i] = fmt.Sprintf("%d:%s", rec.StageNumber, rec.Stage)
		data[i] = opts.BarData{Value: rec.QAScore}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "QA scores", Theme: "dark", Width: "1100px", Height: "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Per-stage QA scores",
			Subtitle: fmt.Sprintf("run=%s stages=%d", runID, len(recs)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "QA score"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: []string{"#d73027", "#fee08b", "#1a9850"}},
		}),
	)

	bar.SetXAxis(labels)
	bar.AddSeries("qa", data)
	return bar
}
