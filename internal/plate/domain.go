// Package plate estimates steady-state temperatures on a rectangular plate
// with fixed edge temperatures using the walk-on-spheres Monte Carlo method.
//
// A walk starts at the query point and repeatedly jumps to a uniformly
// random point on the largest circle centred at the current position that
// still fits inside the plate. Once the walk is within Epsilon of an edge it
// is absorbed and that edge's temperature becomes one sample. The estimate
// is the mean over many independent walks.
package plate

import (
	"fmt"
	"math"
)

// Wall identifies one edge of the plate. The numbering is fixed and is used
// to index Domain.Temperatures.
type Wall int

const (
	WallBottom Wall = iota // y = 0
	WallRight              // x = width
	WallLeft               // x = 0
	WallTop                // y = height

	// WallCount is the number of edges of the plate.
	WallCount = 4
)

var wallNames = [WallCount]string{"bottom", "right", "left", "top"}

func (w Wall) String() string {
	if w < 0 || int(w) >= WallCount {
		return fmt.Sprintf("wall(%d)", int(w))
	}
	return wallNames[w]
}

// ParseWall maps an edge name back to its Wall.
func ParseWall(s string) (Wall, error) {
	for i, name := range wallNames {
		if name == s {
			return Wall(i), nil
		}
	}
	return 0, fmt.Errorf("unknown wall %q", s)
}

// Point is a position on the plate in plate-length units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Domain describes the plate: its dimensions and the fixed temperature of
// each edge. A Domain is a value and is never modified by this package, so
// it can be shared freely between concurrent estimates.
type Domain struct {
	Width        float64            `json:"width"`
	Height       float64            `json:"height"`
	Temperatures [WallCount]float64 `json:"temperatures"`
}

// NewDomain validates the dimensions and edge temperatures and returns the
// resulting Domain. temps is ordered bottom, right, left, top.
func NewDomain(width, height float64, temps []float64) (Domain, error) {
	if len(temps) != WallCount {
		return Domain{}, fmt.Errorf("%w: need %d edge temperatures, got %d", ErrInvalidDomain, WallCount, len(temps))
	}
	d := Domain{Width: width, Height: height}
	copy(d.Temperatures[:], temps)
	if err := d.Validate(); err != nil {
		return Domain{}, err
	}
	return d, nil
}

// Validate reports whether the dimensions and temperatures are usable.
func (d Domain) Validate() error {
	if !(d.Width > 0) || math.IsInf(d.Width, 0) {
		return fmt.Errorf("%w: width must be positive and finite, got %v", ErrInvalidDomain, d.Width)
	}
	if !(d.Height > 0) || math.IsInf(d.Height, 0) {
		return fmt.Errorf("%w: height must be positive and finite, got %v", ErrInvalidDomain, d.Height)
	}
	for i, t := range d.Temperatures {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: %s temperature must be finite, got %v", ErrInvalidDomain, Wall(i), t)
		}
	}
	return nil
}

// Temperature returns the configured temperature of wall w.
func (d Domain) Temperature(w Wall) float64 {
	return d.Temperatures[w]
}

// Contains reports whether p lies inside the plate, edges included.
// NaN coordinates are never contained.
func (d Domain) Contains(p Point) bool {
	return p.X >= 0 && p.X <= d.Width && p.Y >= 0 && p.Y <= d.Height
}

// Radius returns the radius of the largest circle centred at p that stays
// inside the plate: the distance to the nearest edge.
func (d Domain) Radius(p Point) float64 {
	return math.Min(math.Min(p.X, d.Width-p.X), math.Min(p.Y, d.Height-p.Y))
}

// WallNear returns the wall p is within eps of, if any.
//
// Walls are tested in a fixed order: left, bottom, right, top. A point near
// a corner is therefore assigned to the first matching wall in that order
// rather than to the nearer one. The order only affects walks that end in a
// corner region and is kept fixed so results are reproducible.
func (d Domain) WallNear(p Point, eps float64) (Wall, bool) {
	switch {
	case p.X <= eps:
		return WallLeft, true
	case p.Y <= eps:
		return WallBottom, true
	case d.Width-p.X <= eps:
		return WallRight, true
	case d.Height-p.Y <= eps:
		return WallTop, true
	}
	return 0, false
}
