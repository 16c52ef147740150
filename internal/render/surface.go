package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/platetemp/internal/field"
)

// SurfaceOptions controls SurfaceHTML.
type SurfaceOptions struct {
	Title string
	// AssetsHost overrides where the page loads the echarts scripts from.
	AssetsHost string
	// AutoRotate spins the surface in the browser.
	AutoRotate bool
}

// coolWarm mirrors the heat map palette end points.
var coolWarm = []string{"#3b4cc0", "#7396f5", "#b0cbfc", "#dddddd", "#f6bfa6", "#ea7b60", "#b40426"}

// SurfaceHTML writes f as a self-contained HTML page with a 3D surface
// plot of temperature over the plate.
func SurfaceHTML(w io.Writer, f *field.Field, o SurfaceOptions) error {
	lo, hi, err := valueRange(f)
	if err != nil {
		return fmt.Errorf("surface: %w", err)
	}
	if o.Title == "" {
		o.Title = "Plate temperature"
	}

	cols, rows := f.Dims()
	data := make([]opts.Chart3DData, 0, cols*rows)
	for r := range rows {
		for c := range cols {
			data = append(data, opts.Chart3DData{Value: []interface{}{f.X(c), f.Y(r), f.Z(c, r)}})
		}
	}

	initOpts := opts.Initialization{PageTitle: o.Title, Width: "900px", Height: "720px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	surface := charts.NewSurface3D()
	surface.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{
			Title:    o.Title,
			Subtitle: fmt.Sprintf("%gx%g plate, %d points, %.2f to %.2f", f.Domain.Width, f.Domain.Height, len(data), lo, hi),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "x", Type: "value", Min: 0, Max: f.Domain.Width}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "y", Type: "value", Min: 0, Max: f.Domain.Height}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "temperature", Type: "value", Min: lo, Max: hi}),
		charts.WithGrid3DOpts(opts.Grid3D{
			BoxWidth:    float32(100 * f.Domain.Width / max(f.Domain.Width, f.Domain.Height)),
			BoxDepth:    float32(100 * f.Domain.Height / max(f.Domain.Width, f.Domain.Height)),
			ViewControl: &opts.ViewControl{AutoRotate: opts.Bool(o.AutoRotate)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: coolWarm},
		}),
	)
	surface.AddSeries("temperature", data)

	if err := surface.Render(w); err != nil {
		return fmt.Errorf("rendering surface: %w", err)
	}
	return nil
}
