// Package chart renders the dashboard charts as PNG images with gonum/plot.
package chart

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/torino-sdg/sdg11-cli/internal/model"
	"github.com/torino-sdg/sdg11-cli/internal/trends"
)

// Chart names accepted by the render command and the HTTP API.
const (
	NameHistogram = "histogram"
	NameTrends    = "trends"
	NameScores    = "scores"
)

// Names lists the renderable charts.
var Names = []string{NameHistogram, NameTrends, NameScores}

// ErrNoData is returned when a chart has nothing to draw.
var ErrNoData = eris.New("chart: no data to plot")

// Size is a chart size in centimetres.
type Size struct {
	WidthCm  float64
	HeightCm float64
}

func (s Size) lengths() (vg.Length, vg.Length) {
	w, h := s.WidthCm, s.HeightCm
	if w <= 0 {
		w = 16
	}
	if h <= 0 {
		h = 8
	}
	return vg.Length(w) * vg.Centimeter, vg.Length(h) * vg.Centimeter
}

// Histogram plots the distribution of normalized pixel values.
func Histogram(pollutant string, values []float64, bins int) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = "Normalized " + pollutant + " pixel distribution"
	p.X.Label.Text = "Normalized value"
	p.Y.Label.Text = "Pixels"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return nil, eris.Wrap(err, "chart: histogram")
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)
	return p, nil
}

// Trends plots one line per series against time.
func Trends(series []trends.Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Pollutant trends"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Mean"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Add(plotter.NewGrid())

	var drawn int
	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = float64(pt.Date.Unix())
			xys[j].Y = pt.Value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, eris.Wrapf(err, "chart: trend line %s", s.Name)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.Name, line)
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNoData
	}
	p.Legend.Top = true
	return p, nil
}

// Scores plots the n highest SDG 11 scores as horizontal bars, best at the
// top. Records without a score are skipped.
func Scores(records []model.MunicipalityRecord, n int) (*plot.Plot, error) {
	top := model.Top(records, model.ColumnSDGScore, true, n)
	if len(top) == 0 {
		return nil, ErrNoData
	}

	// NominalY places the first name at the bottom.
	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, r := range top {
		j := len(top) - 1 - i
		values[j] = *r.SDGScore
		names[j] = r.Name
	}

	p := plot.New()
	p.Title.Text = "Top municipalities by SDG 11 score"
	p.X.Label.Text = "SDG 11 score"
	p.X.Min = 0
	p.X.Max = 100

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return nil, eris.Wrap(err, "chart: score bars")
	}
	bars.Horizontal = true
	bars.Color = plotutil.Color(2)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(names...)
	return p, nil
}

// WritePNG renders p as PNG to w.
func WritePNG(w io.Writer, p *plot.Plot, size Size) error {
	width, height := size.lengths()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return eris.Wrap(err, "chart: render png")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return eris.Wrap(err, "chart: write png")
	}
	return nil
}

// SavePNG renders p to a PNG file at path.
func SavePNG(path string, p *plot.Plot, size Size) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "chart: create file")
	}
	if err := WritePNG(f, p, size); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "chart: close file")
}
