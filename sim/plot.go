package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// New2DPlot creates new plot of a filter run from the three data sources stored as (step, value) rows:
// model:   true system values
// measure: measurement values
// filter:  filter estimates
// It returns error if the plot fails to be created. This can be due to either of the following conditions:
// * either of the supplied data matrices is nil
// * either of the supplied data matrices does not have at least 2 columns
// * gonum plot fails to be created
func New2DPlot(model, measure, filter *mat.Dense) (*plot.Plot, error) {
	if model == nil || measure == nil || filter == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	_, cmd := model.Dims()
	_, cms := measure.Dims()
	_, cmf := filter.Dims()

	if cmd < 2 || cms < 2 || cmf < 2 {
		return nil, fmt.Errorf("invalid data dimensions")
	}

	p := plot.New()

	p.Title.Text = "Particle filter"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "state"

	legend := plot.NewLegend()

	legend.Top = true

	p.Legend = legend

	// Make a scatter plotter for model data
	modelData := makePoints(model)
	modelScatter, err := plotter.NewScatter(modelData)
	if err != nil {
		return nil, err
	}
	modelScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	modelScatter.Shape = draw.PyramidGlyph{}
	modelScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(modelScatter)
	p.Legend.Add("model", modelScatter)

	// Make a scatter plotter for measurement data
	measData := makePoints(measure)
	measScatter, err := plotter.NewScatter(measData)
	if err != nil {
		return nil, err
	}
	measScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	measScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(measScatter)
	p.Legend.Add("measurement", measScatter)

	// Make a line plotter for filter data
	filterPoints := makePoints(filter)
	filterLine, err := plotter.NewLine(filterPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %v", err)
	}
	filterLine.LineStyle.Color = color.RGBA{B: 255, A: 255}
	filterLine.LineStyle.Width = vg.Points(1.5)

	p.Add(filterLine)
	p.Legend.Add("estimate", filterLine)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
