// Package field sweeps the single-point estimator over a grid to build the
// temperature field of a plate.
package field

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/timeutil"
)

// Estimator is the single-point solver the sweep calls once per grid point.
type Estimator interface {
	Estimate(ctx context.Context, d plate.Domain, p plate.Point) (plate.Estimate, error)
}

// forker is implemented by estimators that can derive a decorrelated copy
// of themselves per grid point.
type forker interface {
	Fork(stream uint64) *plate.Estimator
}

// Field is an estimated temperature field. Values and StdErrs are indexed
// [row][col] where row follows Ys and col follows Xs.
type Field struct {
	Domain  plate.Domain  `json:"domain"`
	Options plate.Options `json:"options"`
	Xs      []float64     `json:"xs"`
	Ys      []float64     `json:"ys"`
	Values  [][]float64   `json:"values"`
	StdErrs [][]float64   `json:"stderrs,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// NewField allocates a zeroed field over g.
func NewField(d plate.Domain, g Grid) *Field {
	f := &Field{
		Domain:  d,
		Xs:      g.Xs,
		Ys:      g.Ys,
		Values:  make([][]float64, len(g.Ys)),
		StdErrs: make([][]float64, len(g.Ys)),
	}
	for r := range f.Values {
		f.Values[r] = make([]float64, len(g.Xs))
		f.StdErrs[r] = make([]float64, len(g.Xs))
	}
	return f
}

// Dims, Z, X and Y implement gonum/plot's plotter.GridXYZ.

func (f *Field) Dims() (c, r int)   { return len(f.Xs), len(f.Ys) }
func (f *Field) Z(c, r int) float64 { return f.Values[r][c] }
func (f *Field) X(c int) float64    { return f.Xs[c] }
func (f *Field) Y(r int) float64    { return f.Ys[r] }

// At returns the value nearest to p on the grid.
func (f *Field) At(p plate.Point) float64 {
	return f.Values[nearest(f.Ys, p.Y)][nearest(f.Xs, p.X)]
}

func nearest(axis []float64, v float64) int {
	best := 0
	for i, a := range axis {
		if abs(a-v) < abs(axis[best]-v) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// SweepOptions controls a field sweep.
type SweepOptions struct {
	// Workers is the number of grid points estimated concurrently. Zero or
	// one sweeps sequentially.
	Workers int
	// Progress, if set, is called after every finished point. Calls are
	// serialised.
	Progress func(done, total int)
	// Clock times the sweep. Defaults to the real clock.
	Clock timeutil.Clock
}

// Sweep estimates every point of g. Points are visited row by row. The
// first failing point aborts the sweep and its error is returned; if ctx is
// cancelled the error matches plate.ErrCancelled.
//
// When est can Fork, each point uses a copy forked on its row-major index so
// a fixed seed still gives independent walks per point.
func Sweep(ctx context.Context, est Estimator, d plate.Domain, g Grid, opts SweepOptions) (*Field, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := g.Validate(d); err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()

	f := NewField(d, g)
	if e, ok := est.(interface{ Options() plate.Options }); ok {
		f.Options = e.Options()
	}

	total := g.Points()
	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		opts.Progress(done, total)
	}

	point := func(ctx context.Context, idx int) error {
		r, c := idx/len(g.Xs), idx%len(g.Xs)
		p := plate.Point{X: g.Xs[c], Y: g.Ys[r]}
		pointEst := est
		if fk, ok := est.(forker); ok {
			pointEst = fk.Fork(uint64(idx))
		}
		res, err := pointEst.Estimate(ctx, d, p)
		if err != nil {
			return fmt.Errorf("estimating (%g, %g): %w", p.X, p.Y, err)
		}
		f.Values[r][c] = res.Temperature
		f.StdErrs[r][c] = res.StdErr
		report()
		return nil
	}

	workers := max(opts.Workers, 1)
	if workers == 1 {
		for idx := range total {
			if err := point(ctx, idx); err != nil {
				return nil, err
			}
		}
	} else {
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(workers)
		for idx := range total {
			if gctx.Err() != nil {
				break
			}
			eg.Go(func() error { return point(gctx, idx) })
		}
		if err := eg.Wait(); err != nil {
			if errors.Is(err, plate.ErrCancelled) && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", plate.ErrCancelled, ctx.Err())
			}
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", plate.ErrCancelled, err)
		}
	}

	f.Elapsed = clock.Since(start)
	return f, nil
}
