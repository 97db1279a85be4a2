// Package report renders rank benchmark results as PNG and HTML charts.
package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/keizerzilla/latin/internal/fsutil"
	"github.com/keizerzilla/latin/internal/recognition"
	"github.com/keizerzilla/latin/internal/security"
)

// ErrNoResults is returned when there is nothing to draw.
var ErrNoResults = errors.New("no results to report")

// RatePlotter writes recognition rate bar charts into an output directory.
type RatePlotter struct {
	FS        fsutil.FileSystem
	OutputDir string
	Width     vg.Length
	Height    vg.Length
}

// NewRatePlotter returns a plotter writing 10x5 inch PNGs under dir.
func NewRatePlotter(dir string) *RatePlotter {
	return &RatePlotter{FS: fsutil.OSFileSystem{}, OutputDir: dir, Width: 10 * vg.Inch, Height: 5 * vg.Inch}
}

// Classifiers returns every classifier name that appears in summaries,
// sorted.
func Classifiers(summaries []recognition.Summary) []string {
	seen := make(map[string]bool)
	for _, s := range summaries {
		for name := range s.Results {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ratePercent returns the rate of classifier under s in percent, 0 when the
// classifier did not run.
func ratePercent(s recognition.Summary, classifier string) float64 {
	return math.Round(s.Results[classifier].RecognitionRate*100*100) / 100
}

// PlotBest draws the best rate of every protocol and returns the file path.
func (rp *RatePlotter) PlotBest(name string, summaries []recognition.Summary) (string, error) {
	if len(summaries) == 0 {
		return "", ErrNoResults
	}
	p := plot.New()
	p.Title.Text = "Best recognition rate per protocol"
	p.Y.Label.Text = "Rate (%)"
	p.Y.Min, p.Y.Max = 0, 100

	values := make(plotter.Values, len(summaries))
	labels := make([]string, len(summaries))
	for i, s := range summaries {
		values[i] = s.RatePercent
		labels[i] = fmt.Sprintf("%s\n%s", s.Protocol, s.Classifier)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return "", errors.Wrap(err, "bar chart")
	}
	bars.Color = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	return rp.save(p, name+"_best.png")
}

// PlotClassifiers draws one bar group per protocol with a bar per
// classifier and returns the file path.
func (rp *RatePlotter) PlotClassifiers(name string, summaries []recognition.Summary) (string, error) {
	classifiers := Classifiers(summaries)
	if len(summaries) == 0 || len(classifiers) == 0 {
		return "", ErrNoResults
	}
	p := plot.New()
	p.Title.Text = "Recognition rate per classifier"
	p.Y.Label.Text = "Rate (%)"
	p.Y.Min, p.Y.Max = 0, 100

	width := vg.Points(12)
	colors := generateColors(len(classifiers))
	for i, c := range classifiers {
		values := make(plotter.Values, len(summaries))
		for j, s := range summaries {
			values[j] = ratePercent(s, c)
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return "", errors.Wrapf(err, "bar chart %s", c)
		}
		bars.Color = colors[i]
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = width * vg.Length(float64(i)-float64(len(classifiers)-1)/2)
		p.Add(bars)
		p.Legend.Add(c, bars)
	}
	protocols := make([]string, len(summaries))
	for i, s := range summaries {
		protocols[i] = s.Protocol
	}
	p.NominalX(protocols...)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return rp.save(p, name+"_classifiers.png")
}

func (rp *RatePlotter) save(p *plot.Plot, file string) (string, error) {
	path, err := security.JoinWithin(rp.OutputDir, security.SanitizeFilename(file))
	if err != nil {
		return "", err
	}
	if err := rp.FS.MkdirAll(rp.OutputDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", rp.OutputDir)
	}
	wt, err := p.WriterTo(rp.Width, rp.Height, filepath.Ext(file)[1:])
	if err != nil {
		return "", errors.Wrap(err, "render plot")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", errors.Wrap(err, "encode plot")
	}
	if err := rp.FS.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// generateColors spreads n colours evenly around the hue circle.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
