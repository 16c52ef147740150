package plate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Default solver settings used by DefaultOptions.
const (
	DefaultTrials   = 1000
	DefaultEpsilon  = 0.05
	DefaultMaxSteps = 100000
)

// Options configures an Estimator.
type Options struct {
	// Trials is the number of independent walks per query point.
	Trials int `json:"trials"`
	// Epsilon is the distance at which a walk is absorbed by a wall.
	Epsilon float64 `json:"epsilon"`
	// MaxSteps bounds the steps of a single walk. Zero means DefaultMaxSteps.
	MaxSteps int `json:"max_steps"`
	// Workers is the number of goroutines sharing the trials of one
	// estimate. Zero or one runs the trials sequentially.
	Workers int `json:"workers"`
	// Seed fixes the random sequence. Zero draws a fresh seed per estimate.
	Seed uint64 `json:"seed"`
}

// DefaultOptions returns 1000 sequential trials absorbing at 0.05 with a
// fresh seed per estimate.
func DefaultOptions() Options {
	return Options{
		Trials:   DefaultTrials,
		Epsilon:  DefaultEpsilon,
		MaxSteps: DefaultMaxSteps,
		Workers:  1,
	}
}

// Validate checks that the options can drive an estimate.
func (o Options) Validate() error {
	if o.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidOptions, o.Trials)
	}
	if !(o.Epsilon > 0) || math.IsInf(o.Epsilon, 0) {
		return fmt.Errorf("%w: epsilon must be positive and finite, got %v", ErrInvalidOptions, o.Epsilon)
	}
	if o.MaxSteps < 0 {
		return fmt.Errorf("%w: max_steps must be non-negative, got %d", ErrInvalidOptions, o.MaxSteps)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

// Estimate is the result of estimating the temperature at one point.
type Estimate struct {
	Point       Point          `json:"point"`
	Temperature float64        `json:"temperature"`
	StdDev      float64        `json:"stddev"`
	StdErr      float64        `json:"stderr"`
	Trials      int            `json:"trials"`
	TotalSteps  int            `json:"total_steps"`
	LongestWalk int            `json:"longest_walk"`
	Hits        [WallCount]int `json:"hits"`
	Seed        uint64         `json:"seed"`
}

// Observer is notified after every estimate, successful or not.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveEstimate(est Estimate, err error, elapsed time.Duration)
}

// Estimator runs walk-on-spheres estimates. It holds no per-estimate state,
// so one Estimator may serve concurrent calls.
type Estimator struct {
	opts     Options
	sources  SourceFactory
	observer Observer
}

// Option customises an Estimator.
type Option func(*Estimator)

// WithSourceFactory replaces the default PCG random source.
func WithSourceFactory(f SourceFactory) Option {
	return func(e *Estimator) {
		if f != nil {
			e.sources = f
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(e *Estimator) { e.observer = o }
}

// NewEstimator validates opts and returns an Estimator.
func NewEstimator(opts Options, options ...Option) (*Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	e := &Estimator{opts: opts, sources: NewPCGSource}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Options returns the options the Estimator was built with.
func (e *Estimator) Options() Options {
	return e.opts
}

// Fork returns an Estimator sharing e's configuration whose seed is derived
// from e's seed and stream. Forks with different streams produce
// independent sequences; with an unset seed the fork is equivalent to e.
func (e *Estimator) Fork(stream uint64) *Estimator {
	c := *e
	if c.opts.Seed != 0 {
		c.opts.Seed = mixSeed(c.opts.Seed, stream+1)
		if c.opts.Seed == 0 {
			c.opts.Seed = 1
		}
	}
	return &c
}

// Estimate returns the mean wall temperature reached by Options.Trials
// independent walks from p.
//
// p must lie inside d (edges included); otherwise ErrInvalidQueryPoint is
// returned before any walk starts. If ctx is cancelled the samples gathered
// so far are discarded and the error matches ErrCancelled.
func (e *Estimator) Estimate(ctx context.Context, d Domain, p Point) (Estimate, error) {
	start := time.Now()
	est, err := e.estimate(ctx, d, p)
	if e.observer != nil {
		e.observer.ObserveEstimate(est, err, time.Since(start))
	}
	return est, err
}

// tally accumulates per-worker walk statistics.
type tally struct {
	steps   int
	longest int
	hits    [WallCount]int
}

func (e *Estimator) estimate(ctx context.Context, d Domain, p Point) (Estimate, error) {
	if err := d.Validate(); err != nil {
		return Estimate{}, err
	}
	if !d.Contains(p) {
		return Estimate{}, fmt.Errorf("%w: (%g, %g) not in [0, %g] x [0, %g]",
			ErrInvalidQueryPoint, p.X, p.Y, d.Width, d.Height)
	}
	if err := ctx.Err(); err != nil {
		return Estimate{}, cancelled(err)
	}

	seed := e.opts.Seed
	if seed == 0 {
		seed = randomSeed()
	}

	trials := e.opts.Trials
	workers := min(max(e.opts.Workers, 1), trials)
	samples := make([]float64, trials)
	tallies := make([]tally, workers)

	if workers == 1 {
		w := NewWalker(d, e.opts.Epsilon, e.opts.MaxSteps, e.sources(seed, 0))
		if err := runTrials(ctx, w, p, samples, 0, &tallies[0]); err != nil {
			return Estimate{}, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		per, rem := trials/workers, trials%workers
		lo := 0
		for i := range workers {
			n := per
			if i == workers-1 {
				n += rem
			}
			chunk, offset, t := samples[lo:lo+n], lo, &tallies[i]
			src := e.sources(seed, uint64(i))
			g.Go(func() error {
				w := NewWalker(d, e.opts.Epsilon, e.opts.MaxSteps, src)
				return runTrials(gctx, w, p, chunk, offset, t)
			})
			lo += n
		}
		if err := g.Wait(); err != nil {
			// Workers only see the group context; report the caller's own
			// cause so a deadline surfaces as DeadlineExceeded.
			if errors.Is(err, ErrCancelled) && ctx.Err() != nil {
				return Estimate{}, cancelled(ctx.Err())
			}
			return Estimate{}, err
		}
	}

	est := Estimate{Point: p, Trials: trials, Seed: seed}
	for _, t := range tallies {
		est.TotalSteps += t.steps
		est.LongestWalk = max(est.LongestWalk, t.longest)
		for i, h := range t.hits {
			est.Hits[i] += h
		}
	}
	est.Temperature, est.StdDev = stat.MeanStdDev(samples, nil)
	if trials < 2 {
		est.StdDev = 0
	}
	est.StdErr = stat.StdErr(est.StdDev, float64(trials))
	return est, nil
}

// runTrials fills samples with one wall temperature per walk. The first
// failing walk stops the loop; its error is returned and the samples are
// left for the caller to discard.
func runTrials(ctx context.Context, w *Walker, p Point, samples []float64, offset int, t *tally) error {
	for i := range samples {
		trial, err := w.Walk(ctx, p)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return err
			}
			return &WalkError{Trial: offset + i, Steps: trial.Steps, Position: trial.End, Err: err}
		}
		samples[i] = w.domain.Temperature(trial.Wall)
		t.steps += trial.Steps
		t.longest = max(t.longest, trial.Steps)
		t.hits[trial.Wall]++
	}
	return nil
}

// EstimateTemperature estimates the temperature at p with trials walks and
// the default epsilon and step ceiling. It is safe to call concurrently for
// different points.
func EstimateTemperature(ctx context.Context, d Domain, p Point, trials int) (float64, error) {
	opts := DefaultOptions()
	opts.Trials = trials
	e, err := NewEstimator(opts)
	if err != nil {
		return 0, err
	}
	est, err := e.Estimate(ctx, d, p)
	if err != nil {
		return 0, err
	}
	return est.Temperature, nil
}
