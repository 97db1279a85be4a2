package report

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/keizerzilla/latin/internal/fsutil"
	"github.com/keizerzilla/latin/internal/recognition"
)

// RenderHTML writes a page with the best rate per protocol and the rate of
// every classifier per protocol.
func RenderHTML(w io.Writer, title string, summaries []recognition.Summary) error {
	if len(summaries) == 0 {
		return ErrNoResults
	}
	protocols := make([]string, len(summaries))
	best := make([]opts.BarData, len(summaries))
	for i, s := range summaries {
		protocols[i] = s.Protocol
		best[i] = opts.BarData{Name: s.Classifier, Value: s.RatePercent}
	}

	bestBar := charts.NewBar()
	bestBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Best recognition rate", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rate (%)", Min: 0, Max: 100}),
	)
	bestBar.SetXAxis(protocols).
		AddSeries("best", best,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	perClassifier := charts.NewBar()
	perClassifier.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: "Recognition rate per classifier"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Rate (%)", Min: 0, Max: 100}),
	)
	perClassifier.SetXAxis(protocols)
	for _, c := range Classifiers(summaries) {
		data := make([]opts.BarData, len(summaries))
		for i, s := range summaries {
			data[i] = opts.BarData{Value: ratePercent(s, c)}
		}
		perClassifier.AddSeries(c, data)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(bestBar, perClassifier)
	return errors.Wrap(page.Render(w), "render report")
}

// WriteHTML renders the report page to path.
func WriteHTML(fsys fsutil.FileSystem, path, title string, summaries []recognition.Summary) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, title, summaries); err != nil {
		return err
	}
	return errors.Wrapf(fsys.WriteFile(path, buf.Bytes(), 0o644), "write %s", path)
}
