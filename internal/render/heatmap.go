// Package render draws estimated temperature fields as PNG heat maps and
// interactive HTML surfaces.
package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/platetemp/internal/field"
)

// HeatMapOptions controls HeatMapPNG. Zero values pick the defaults.
type HeatMapOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Colors int
}

const (
	defaultPlotWidth  = 8 * vg.Inch
	defaultPlotHeight = 6 * vg.Inch
	defaultColors     = 255
)

// valueRange returns the min and max of f, widened around a constant field
// so the palette scale stays finite.
func valueRange(f *field.Field) (lo, hi float64, err error) {
	s, err := f.Summary()
	if err != nil {
		return 0, 0, err
	}
	lo, hi = s.Min, s.Max
	if hi-lo < 1e-9 {
		lo, hi = lo-0.5, hi+0.5
	}
	return lo, hi, nil
}

// HeatMapPNG writes f to w as a PNG heat map coloured with the Moreland
// cool-warm palette, x along the plate width and y along its height.
func HeatMapPNG(w io.Writer, f *field.Field, o HeatMapOptions) error {
	lo, hi, err := valueRange(f)
	if err != nil {
		return fmt.Errorf("heat map: %w", err)
	}

	if o.Width == 0 {
		o.Width = defaultPlotWidth
	}
	if o.Height == 0 {
		o.Height = defaultPlotHeight
	}
	if o.Colors <= 0 {
		o.Colors = defaultColors
	}
	if o.Title == "" {
		o.Title = fmt.Sprintf("Plate temperature %gx%g", f.Domain.Width, f.Domain.Height)
	}

	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	hm := plotter.NewHeatMap(f, cmap.Palette(o.Colors))
	hm.Min, hm.Max = lo, hi

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%.2f to %.2f)", o.Title, lo, hi)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)

	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("heat map writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing heat map: %w", err)
	}
	return nil
}
