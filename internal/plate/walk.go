package plate

import (
	"context"
	"math"
)

// Trial is the outcome of one walk from the query point to a wall.
type Trial struct {
	Wall  Wall
	Steps int
	End   Point
}

// Walker advances walks on a single Domain using a single Source. It is not
// safe for concurrent use; give each goroutine its own Walker.
type Walker struct {
	domain   Domain
	eps      float64
	maxSteps int
	src      Source
}

// NewWalker returns a Walker absorbing at eps and giving up after maxSteps
// steps. A maxSteps of zero or less means DefaultMaxSteps; every walk is
// bounded.
func NewWalker(d Domain, eps float64, maxSteps int, src Source) *Walker {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Walker{domain: d, eps: eps, maxSteps: maxSteps, src: src}
}

// Step moves p to a uniformly random point on the largest circle centred at
// p that fits inside the plate.
func (w *Walker) Step(p Point) Point {
	r := w.domain.Radius(p)
	theta := 2 * math.Pi * w.src.Float64()
	sin, cos := math.Sincos(theta)
	return Point{X: p.X + r*cos, Y: p.Y + r*sin}
}

// Walk runs one trial from start until the walk is absorbed by a wall.
// The position is tested against the walls before every step, so a start
// within eps of a wall is absorbed without moving.
//
// ctx is checked at the top of every step. On cancellation the returned
// error matches both ErrCancelled and ctx.Err(). If the walk exceeds the
// step ceiling it returns ErrNonConvergent.
func (w *Walker) Walk(ctx context.Context, start Point) (Trial, error) {
	done := ctx.Done()
	p := start
	for steps := 0; ; steps++ {
		if wall, ok := w.domain.WallNear(p, w.eps); ok {
			return Trial{Wall: wall, Steps: steps, End: p}, nil
		}
		if steps >= w.maxSteps {
			return Trial{Steps: steps, End: p}, ErrNonConvergent
		}
		if done != nil {
			select {
			case <-done:
				return Trial{Steps: steps, End: p}, cancelled(ctx.Err())
			default:
			}
		}
		p = w.Step(p)
	}
}
