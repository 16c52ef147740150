package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxAxisValues caps the number of coordinates generated for one axis.
const MaxAxisValues = 10000

// RangeSpec defines an inclusive coordinate range sampled every Step.
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
// Returns an error if the format is invalid or values cannot be parsed.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}

	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}

	step, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return RangeSpec{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}

	if math.IsNaN(min) || math.IsInf(min, 0) || math.IsNaN(max) || math.IsInf(max, 0) {
		return RangeSpec{}, fmt.Errorf("range bounds must be finite, got %g:%g", min, max)
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", step)
	}
	if min > max {
		return RangeSpec{}, fmt.Errorf("min %g exceeds max %g", min, max)
	}

	return RangeSpec{Min: min, Max: max, Step: step}, nil
}

// Values expands the spec with GenerateRange.
func (r RangeSpec) Values() []float64 {
	return GenerateRange(r.Min, r.Max, r.Step)
}

// GenerateRange generates a slice of float64 values from min to max (inclusive)
// stepping by step. Returns nil if min > max, if step is not positive or if
// more than MaxAxisValues values would be produced.
//
// Values are computed as min + i*step rather than by accumulation, and max
// itself is included when it falls within step/1000 of the last value.
func GenerateRange(min, max, step float64) []float64 {
	if !(step > 0) || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if min > max {
		return nil
	}

	n := (max - min) / step
	if n+1 > MaxAxisValues || math.IsInf(n, 0) {
		return nil
	}
	count := int(math.Floor(n+1e-3)) + 1

	result := make([]float64, 0, count)
	for i := range count {
		v := min + float64(i)*step
		if v > max {
			v = max
		}
		result = append(result, v)
	}
	return result
}

// ParseAxis parses either a "min:max:step" range or a comma-separated list
// of coordinates.
func ParseAxis(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.Contains(s, ":") {
		spec, err := ParseRangeSpec(s)
		if err != nil {
			return nil, err
		}
		values := spec.Values()
		if values == nil {
			return nil, fmt.Errorf("range %q exceeds %d values", s, MaxAxisValues)
		}
		return values, nil
	}

	return parseCSVFloat64s(s)
}

// parseCSVFloat64s parses a comma-separated list of float64 values.
func parseCSVFloat64s(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
