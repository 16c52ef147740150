package field

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallField(t *testing.T) *Field {
	t.Helper()
	f := NewField(mustDomain(t, 2, 0.5, 1, 2, 3, 4), Grid{Xs: []float64{0, 1, 2}, Ys: []float64{0, 0.5}})
	v := 1.0
	for r := range f.Values {
		for c := range f.Values[r] {
			f.Values[r][c] = v
			v++
		}
	}
	f.StdErrs[1][2] = 0.25
	return f
}

func TestSummary(t *testing.T) {
	sum, err := smallField(t).Summary()
	require.NoError(t, err)

	expected := Summary{Points: 6, Min: 1, Max: 6, Mean: 3.5, Median: 3.5, P5: 1, P95: 6}
	if sum != expected {
		t.Errorf("Summary() = %+v, want %+v", sum, expected)
	}

	_, err = NewField(mustDomain(t, 1, 1, 0, 0, 0, 0), Grid{}).Summary()
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, smallField(t).WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	expected := []string{
		"x,y,temperature,stderr",
		"0,0,1.000000,0.000000",
		"1,0,2.000000,0.000000",
		"2,0,3.000000,0.000000",
		"0,0.5,4.000000,0.000000",
		"1,0.5,5.000000,0.000000",
		"2,0.5,6.000000,0.250000",
	}
	assert.Equal(t, expected, lines)
}

func TestWriteCSVWithoutStdErrs(t *testing.T) {
	f := smallField(t)
	f.StdErrs = nil

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Contains(t, buf.String(), "2,0.5,6.000000,0.000000\n")
}
