package field

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseRangeSpec(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  RangeSpec
		expectErr bool
	}{
		{"valid_range", "1.0:5.0:0.5", RangeSpec{Min: 1.0, Max: 5.0, Step: 0.5}, false},
		{"integer_range", "0:10:1", RangeSpec{Min: 0, Max: 10, Step: 1}, false},
		{"with_spaces", " 1.0 : 5.0 : 0.5 ", RangeSpec{Min: 1.0, Max: 5.0, Step: 0.5}, false},
		{"single_value", "2:2:1", RangeSpec{Min: 2, Max: 2, Step: 1}, false},
		{"missing_parts", "1.0:5.0", RangeSpec{}, true},
		{"too_many_parts", "1.0:5.0:0.5:2.0", RangeSpec{}, true},
		{"invalid_min", "abc:5.0:0.5", RangeSpec{}, true},
		{"invalid_max", "1.0:abc:0.5", RangeSpec{}, true},
		{"invalid_step", "1.0:5.0:abc", RangeSpec{}, true},
		{"zero_step", "1.0:5.0:0", RangeSpec{}, true},
		{"negative_step", "1.0:5.0:-0.5", RangeSpec{}, true},
		{"min_above_max", "5:1:1", RangeSpec{}, true},
		{"nan_min", "NaN:5:1", RangeSpec{}, true},
		{"nan_max", "0:NaN:1", RangeSpec{}, true},
		{"infinite_max", "0:Inf:1", RangeSpec{}, true},
		{"infinite_min", "-Inf:5:1", RangeSpec{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseRangeSpec(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if result != tc.expected {
				t.Errorf("Expected %+v, got %+v", tc.expected, result)
			}
		})
	}
}

func TestGenerateRange(t *testing.T) {
	testCases := []struct {
		name     string
		min      float64
		max      float64
		step     float64
		expected []float64
	}{
		{"basic", 0, 2, 0.5, []float64{0, 0.5, 1, 1.5, 2}},
		{"single_value", 3, 3, 1, []float64{3}},
		{"max_not_on_step", 0, 1, 0.3, []float64{0, 0.3, 0.6, 0.9}},
		{"tenths_reach_max", 0, 1, 0.1, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}},
		{"min_above_max", 5, 1, 1, nil},
		{"zero_step", 0, 1, 0, nil},
		{"negative_step", 0, 1, -1, nil},
		{"too_many_values", 0, 1, 1e-6, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := GenerateRange(tc.min, tc.max, tc.step)
			if diff := cmp.Diff(tc.expected, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("GenerateRange(%v, %v, %v) mismatch (-want +got):\n%s", tc.min, tc.max, tc.step, diff)
			}
		})
	}
}

func TestGenerateRangeNeverExceedsMax(t *testing.T) {
	for _, step := range []float64{0.1, 0.3, 0.7, 1.1, 2.5} {
		values := GenerateRange(0, 10, step)
		if len(values) == 0 {
			t.Fatalf("step %v produced no values", step)
		}
		if last := values[len(values)-1]; last > 10 {
			t.Errorf("step %v: last value %v exceeds max", step, last)
		}
	}
}

func TestParseAxisNonFiniteBounds(t *testing.T) {
	for _, in := range []string{"NaN:5:1", "0:+Inf:1"} {
		_, err := ParseAxis(in)
		if err == nil || !strings.Contains(err.Error(), "must be finite") {
			t.Errorf("ParseAxis(%q) error = %v, want a finite-bounds error", in, err)
		}
	}
}

func TestParseAxis(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  []float64
		expectErr bool
	}{
		{"empty", "", nil, false},
		{"range", "0:1:0.5", []float64{0, 0.5, 1}, false},
		{"list", "1, 2.5,4", []float64{1, 2.5, 4}, false},
		{"list_with_blank", "1,,2", []float64{1, 2}, false},
		{"bad_list", "1,x", nil, true},
		{"bad_range", "0:1", nil, true},
		{"huge_range", "0:100:0.0001", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAxis(tc.input)
			if tc.expectErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.expected, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("ParseAxis(%q) mismatch (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}
