// Package viz renders successive-halving results with gonum/plot.
package viz

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/opgrid/model_selection"
	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// maxLegend is the number of candidates above which the legend is omitted.
const maxLegend = 10

// HalvingPlot draws the mean test score of every candidate against the
// halving iteration. Candidates eliminated early end their line early.
func HalvingPlot(results []model_selection.CVResult) (*plot.Plot, error) {
	if len(results) == 0 {
		return nil, errors.NewValueError("viz.HalvingPlot", "no cv results to plot")
	}
	series := make(map[int]plotter.XYs)
	for _, r := range results {
		if math.IsNaN(r.MeanTestScore) {
			continue
		}
		series[r.Candidate] = append(series[r.Candidate], plotter.XY{X: float64(r.Iteration), Y: r.MeanTestScore})
	}
	candidates := make([]int, 0, len(series))
	for c := range series {
		candidates = append(candidates, c)
	}
	sort.Ints(candidates)

	p := plot.New()
	p.Title.Text = "Successive halving"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Mean test score"
	p.Add(plotter.NewGrid())

	for i, c := range candidates {
		pts := series[c]
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].X < pts[b].X })
		l, s, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "candidate %d", c)
		}
		l.Color = plotutil.Color(i)
		l.Dashes = plotutil.Dashes(i)
		s.Color = plotutil.Color(i)
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(2)
		p.Add(l, s)
		if len(candidates) <= maxLegend {
			p.Legend.Add(fmt.Sprintf("candidate %d", c), l, s)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// PlotHalving renders HalvingPlot into path. The format follows the file
// extension (.png, .svg, .pdf, ...).
func PlotHalving(results []model_selection.CVResult, path string) error {
	p, err := HalvingPlot(results)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot to %s", path)
	}
	return nil
}
