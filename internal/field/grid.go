package field

import (
	"fmt"
	"slices"

	"github.com/banshee-data/platetemp/internal/plate"
)

// Grid is the set of sample coordinates of a field sweep. Xs are column
// coordinates and Ys row coordinates, both ascending.
type Grid struct {
	Xs []float64 `json:"xs"`
	Ys []float64 `json:"ys"`
}

// Points returns the number of grid points.
func (g Grid) Points() int {
	return len(g.Xs) * len(g.Ys)
}

// NewGrid samples the whole plate every step along both axes, edges
// included.
func NewGrid(d plate.Domain, step float64) (Grid, error) {
	if err := d.Validate(); err != nil {
		return Grid{}, err
	}
	if !(step > 0) {
		return Grid{}, fmt.Errorf("grid step must be positive, got %g", step)
	}
	g := Grid{
		Xs: GenerateRange(0, d.Width, step),
		Ys: GenerateRange(0, d.Height, step),
	}
	if g.Xs == nil || g.Ys == nil {
		return Grid{}, fmt.Errorf("grid step %g gives more than %d values per axis", step, MaxAxisValues)
	}
	return g, nil
}

// GridFromSpecs builds a grid from two axis descriptions accepted by
// ParseAxis and checks that every coordinate lies on the plate.
func GridFromSpecs(d plate.Domain, xSpec, ySpec string) (Grid, error) {
	xs, err := ParseAxis(xSpec)
	if err != nil {
		return Grid{}, fmt.Errorf("parsing x axis: %w", err)
	}
	ys, err := ParseAxis(ySpec)
	if err != nil {
		return Grid{}, fmt.Errorf("parsing y axis: %w", err)
	}
	g := Grid{Xs: xs, Ys: ys}
	if err := g.Validate(d); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate checks that both axes are non-empty, ascending and inside d.
func (g Grid) Validate(d plate.Domain) error {
	if len(g.Xs) == 0 || len(g.Ys) == 0 {
		return fmt.Errorf("grid needs at least one x and one y coordinate")
	}
	if !slices.IsSorted(g.Xs) || !slices.IsSorted(g.Ys) {
		return fmt.Errorf("grid coordinates must be ascending")
	}
	for _, x := range []float64{g.Xs[0], g.Xs[len(g.Xs)-1]} {
		if !d.Contains(plate.Point{X: x, Y: 0}) {
			return fmt.Errorf("%w: x=%g outside [0, %g]", plate.ErrInvalidQueryPoint, x, d.Width)
		}
	}
	for _, y := range []float64{g.Ys[0], g.Ys[len(g.Ys)-1]} {
		if !d.Contains(plate.Point{X: 0, Y: y}) {
			return fmt.Errorf("%w: y=%g outside [0, %g]", plate.ErrInvalidQueryPoint, y, d.Height)
		}
	}
	return nil
}
