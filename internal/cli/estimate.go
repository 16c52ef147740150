package cli

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/monitoring"
	"github.com/banshee-data/platetemp/internal/plate"
)

type estimateOpts struct {
	solver solverFlags
	x, y   float64
	save   bool
	json   bool
}

// estimateCommand creates the estimate command. With no flags it estimates
// (5, 5) on the 15x10 plate with edges 10/5/5/20.
func (c *CLI) estimateCommand() *cobra.Command {
	var opts estimateOpts
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the temperature at one point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEstimate(cmd, &opts)
		},
	}
	opts.solver.register(cmd, "workers")
	cmd.Flags().Float64Var(&opts.x, "x", 5, "query point x")
	cmd.Flags().Float64Var(&opts.y, "y", 5, "query point y")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the estimate in the database")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the estimate as JSON")
	return cmd
}

func (c *CLI) runEstimate(cmd *cobra.Command, opts *estimateOpts) error {
	ctx := cmd.Context()
	logger := monitoring.LoggerFromContext(ctx)

	opts.solver.apply(cmd, c.cfg)
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	d, err := c.cfg.Domain()
	if err != nil {
		return err
	}
	est, err := plate.NewEstimator(c.cfg.Options())
	if err != nil {
		return err
	}

	p := plate.Point{X: opts.x, Y: opts.y}
	logger.Debug("estimating", "point", p, "trials", c.cfg.GetTrials(), "epsilon", c.cfg.GetEpsilon())
	start := c.clock.Now()
	res, err := est.Estimate(ctx, d, p)
	if err != nil {
		return fmt.Errorf("estimate at (%g, %g): %w", p.X, p.Y, err)
	}
	logger.Debug("estimate done", "elapsed", c.clock.Since(start), "steps", res.TotalSteps, "longest", res.LongestWalk)

	rec := &db.EstimateRecord{Domain: d, Epsilon: c.cfg.GetEpsilon(), Estimate: res}
	if opts.save {
		database, err := c.openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := db.NewEstimateStore(database.DB, c.clock).Insert(rec); err != nil {
			return fmt.Errorf("saving estimate: %w", err)
		}
		logger.Info("saved estimate", "id", rec.EstimateID)
	}

	if opts.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	fmt.Fprintf(c.out, "T(%g, %g) = %.3f ± %.3f\n", p.X, p.Y, res.Temperature, res.StdErr)
	fmt.Fprintf(c.out, "  plate %gx%g, edges bottom=%g right=%g left=%g top=%g\n",
		d.Width, d.Height,
		d.Temperature(plate.WallBottom), d.Temperature(plate.WallRight),
		d.Temperature(plate.WallLeft), d.Temperature(plate.WallTop))
	fmt.Fprintf(c.out, "  %d trials, seed %d, stddev %.3f, mean walk %.1f steps (longest %d)\n",
		res.Trials, res.Seed, res.StdDev, meanSteps(res), res.LongestWalk)
	fmt.Fprintf(c.out, "  hits: bottom=%d right=%d left=%d top=%d\n",
		res.Hits[plate.WallBottom], res.Hits[plate.WallRight], res.Hits[plate.WallLeft], res.Hits[plate.WallTop])
	return nil
}

func meanSteps(e plate.Estimate) float64 {
	if e.Trials == 0 {
		return math.NaN()
	}
	return float64(e.TotalSteps) / float64(e.Trials)
}
