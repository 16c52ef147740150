package field

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary describes the distribution of temperatures across a field.
type Summary struct {
	Points int     `json:"points"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
}

// Flatten returns the field values in row-major order.
func (f *Field) Flatten() []float64 {
	out := make([]float64, 0, len(f.Xs)*len(f.Ys))
	for _, row := range f.Values {
		out = append(out, row...)
	}
	return out
}

// Summary computes min, max, mean, median and the nearest-rank 5th/95th
// percentiles.
func (f *Field) Summary() (Summary, error) {
	data := stats.Float64Data(f.Flatten())
	if len(data) == 0 {
		return Summary{}, fmt.Errorf("empty field")
	}

	var (
		s   = Summary{Points: len(data)}
		err error
	)
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, fmt.Errorf("field min: %w", err)
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, fmt.Errorf("field max: %w", err)
	}
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, fmt.Errorf("field mean: %w", err)
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, fmt.Errorf("field median: %w", err)
	}
	if s.P5, err = data.PercentileNearestRank(5); err != nil {
		return Summary{}, fmt.Errorf("field p5: %w", err)
	}
	if s.P95, err = data.PercentileNearestRank(95); err != nil {
		return Summary{}, fmt.Errorf("field p95: %w", err)
	}
	return s, nil
}
