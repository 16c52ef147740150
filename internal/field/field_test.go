package field

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/timeutil"
)

// planeEstimator returns 100*x + y so orientation mistakes are visible.
type planeEstimator struct {
	calls atomic.Int64
	fail  plate.Point
	err   error
}

func (p *planeEstimator) Estimate(ctx context.Context, d plate.Domain, pt plate.Point) (plate.Estimate, error) {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return plate.Estimate{}, fmt.Errorf("%w: %w", plate.ErrCancelled, err)
	}
	if p.err != nil && pt == p.fail {
		return plate.Estimate{}, p.err
	}
	return plate.Estimate{Point: pt, Temperature: 100*pt.X + pt.Y, StdErr: 0.5}, nil
}

func mustDomain(t *testing.T, w, h float64, temps ...float64) plate.Domain {
	t.Helper()
	d, err := plate.NewDomain(w, h, temps)
	require.NoError(t, err)
	return d
}

func TestNewGrid(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)

	g, err := NewGrid(d, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 10, 15}, g.Xs)
	assert.Equal(t, []float64{0, 5, 10}, g.Ys)
	assert.Equal(t, 12, g.Points())

	_, err = NewGrid(d, 0)
	assert.Error(t, err)
	_, err = NewGrid(d, 1e-4)
	assert.Error(t, err)
	_, err = NewGrid(plate.Domain{}, 1)
	assert.ErrorIs(t, err, plate.ErrInvalidDomain)
}

func TestGridFromSpecs(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)

	g, err := GridFromSpecs(d, "1:3:1", "2,4")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, g.Xs)
	assert.Equal(t, []float64{2, 4}, g.Ys)

	testCases := []struct {
		name  string
		xSpec string
		ySpec string
	}{
		{"x_outside", "0:20:5", "1"},
		{"y_outside", "1", "-1,2"},
		{"empty_axis", "", "1"},
		{"unsorted", "3,1", "1"},
		{"bad_spec", "a:b:c", "1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := GridFromSpecs(d, tc.xSpec, tc.ySpec); err == nil {
				t.Errorf("Expected error for x=%q y=%q", tc.xSpec, tc.ySpec)
			}
		})
	}
}

func TestSweepOrientation(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)
	g := Grid{Xs: []float64{1, 2, 3}, Ys: []float64{4, 5}}

	for _, workers := range []int{1, 4} {
		est := &planeEstimator{}
		f, err := Sweep(context.Background(), est, d, g, SweepOptions{Workers: workers})
		require.NoError(t, err)

		c, r := f.Dims()
		assert.Equal(t, 3, c)
		assert.Equal(t, 2, r)
		assert.Equal(t, [][]float64{{104, 204, 304}, {105, 205, 305}}, f.Values)
		assert.Equal(t, 205.0, f.Z(1, 1))
		assert.Equal(t, 3.0, f.X(2))
		assert.Equal(t, 5.0, f.Y(1))
		assert.Equal(t, 0.5, f.StdErrs[1][2])
		assert.EqualValues(t, 6, est.calls.Load())
	}
}

func TestSweepProgress(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)
	g := Grid{Xs: []float64{1, 2, 3, 4}, Ys: []float64{1, 2, 3}}

	var (
		mu    sync.Mutex
		calls []int
	)
	_, err := Sweep(context.Background(), &planeEstimator{}, d, g, SweepOptions{
		Workers: 3,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 12, total)
			calls = append(calls, done)
		},
	})
	require.NoError(t, err)
	require.Len(t, calls, 12)
	for i, done := range calls {
		assert.Equal(t, i+1, done)
	}
}

func TestSweepElapsedUsesClock(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	g := Grid{Xs: []float64{1}, Ys: []float64{1}}

	f, err := Sweep(context.Background(), &planeEstimator{}, d, g, SweepOptions{
		Clock:    clock,
		Progress: func(int, int) { clock.Advance(3 * time.Second) },
	})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, f.Elapsed)
}

func TestSweepPointError(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)
	g := Grid{Xs: []float64{1, 2}, Ys: []float64{1, 2}}
	boom := errors.New("boom")

	for _, workers := range []int{1, 2} {
		est := &planeEstimator{fail: plate.Point{X: 2, Y: 1}, err: boom}
		f, err := Sweep(context.Background(), est, d, g, SweepOptions{Workers: workers})
		assert.Nil(t, f)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "estimating (2, 1)")
	}
}

func TestSweepCancelled(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)
	g := Grid{Xs: []float64{1, 2, 3}, Ys: []float64{1, 2, 3}}

	for _, workers := range []int{1, 3} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f, err := Sweep(ctx, &planeEstimator{}, d, g, SweepOptions{Workers: workers})
		assert.Nil(t, f)
		assert.ErrorIs(t, err, plate.ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestSweepInvalidGrid(t *testing.T) {
	d := mustDomain(t, 15, 10, 10, 5, 5, 20)
	est := &planeEstimator{}

	_, err := Sweep(context.Background(), est, d, Grid{Xs: []float64{-1}, Ys: []float64{1}}, SweepOptions{})
	assert.ErrorIs(t, err, plate.ErrInvalidQueryPoint)
	assert.Zero(t, est.calls.Load())
}

func TestSweepWithPlateEstimator(t *testing.T) {
	d := mustDomain(t, 4, 4, 30, 30, 30, 30)
	opts := plate.DefaultOptions()
	opts.Trials = 50
	opts.Seed = 42
	est, err := plate.NewEstimator(opts)
	require.NoError(t, err)

	g, err := NewGrid(d, 1)
	require.NoError(t, err)
	f, err := Sweep(context.Background(), est, d, g, SweepOptions{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, opts, f.Options)
	for _, row := range f.Values {
		for _, v := range row {
			assert.InDelta(t, 30, v, 1e-9)
		}
	}

	again, err := Sweep(context.Background(), est, d, g, SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, f.Values, again.Values)
}

func TestFieldAt(t *testing.T) {
	f := &Field{
		Xs:     []float64{0, 1, 2},
		Ys:     []float64{0, 1},
		Values: [][]float64{{1, 2, 3}, {4, 5, 6}},
	}
	assert.Equal(t, 6.0, f.At(plate.Point{X: 1.9, Y: 0.8}))
	assert.Equal(t, 1.0, f.At(plate.Point{X: -3, Y: 0.2}))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, f.Flatten())
}
