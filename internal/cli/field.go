package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/field"
	"github.com/banshee-data/platetemp/internal/monitoring"
	"github.com/banshee-data/platetemp/internal/render"
	"github.com/banshee-data/platetemp/internal/runs"
	"github.com/banshee-data/platetemp/internal/security"
)

type fieldOpts struct {
	solver  solverFlags
	step    float64
	xs, ys  string
	workers int
	png     string
	html    string
	csv     string
	save    bool
	label   string
}

// fieldCommand creates the field command, which estimates a grid of points
// and writes any of a PNG heat map, an HTML surface and a CSV table.
func (c *CLI) fieldCommand() *cobra.Command {
	var opts fieldOpts
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Estimate the temperature over a grid of points",
		Long: `Estimate the temperature over a grid covering the plate, edges included.

The grid is spaced by --step, or given explicitly with --xs and --ys as
"min:max:step" ranges or comma-separated lists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runField(cmd, &opts)
		},
	}
	opts.solver.register(cmd, "walk-workers")
	f := cmd.Flags()
	f.Float64Var(&opts.step, "step", 0.5, "grid spacing")
	f.StringVar(&opts.xs, "xs", "", "x axis as min:max:step or a,b,c (overrides --step)")
	f.StringVar(&opts.ys, "ys", "", "y axis as min:max:step or a,b,c (overrides --step)")
	f.IntVarP(&opts.workers, "workers", "w", 4, "grid points estimated concurrently")
	f.StringVar(&opts.png, "png", "", "write a heat map PNG to this path")
	f.StringVar(&opts.html, "html", "", "write a 3D surface HTML page to this path")
	f.StringVar(&opts.csv, "csv", "", "write x,y,temperature,stderr rows to this path (- for stdout)")
	f.BoolVar(&opts.save, "save", false, "store the run in the database")
	f.StringVar(&opts.label, "label", "", "label for a saved run")
	return cmd
}

func (c *CLI) runField(cmd *cobra.Command, opts *fieldOpts) error {
	ctx := cmd.Context()
	logger := monitoring.LoggerFromContext(ctx)

	opts.solver.apply(cmd, c.cfg)
	if cmd.Flags().Changed("step") {
		c.cfg.GridStep = &opts.step
	}
	if cmd.Flags().Changed("workers") {
		c.cfg.FieldWorkers = &opts.workers
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	d, err := c.cfg.Domain()
	if err != nil {
		return err
	}

	var (
		g    field.Grid
		step float64
	)
	if opts.xs != "" || opts.ys != "" {
		if opts.xs == "" || opts.ys == "" {
			return fmt.Errorf("--xs and --ys must be given together")
		}
		g, err = field.GridFromSpecs(d, opts.xs, opts.ys)
	} else {
		step = c.cfg.GetGridStep()
		g, err = field.NewGrid(d, step)
	}
	if err != nil {
		return err
	}

	var store *db.RunStore
	if opts.save {
		database, err := c.openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		store = db.NewRunStore(database.DB, c.clock)
	}

	logger.Info("sweeping plate", "cols", len(g.Xs), "rows", len(g.Ys), "trials", c.cfg.GetTrials(), "workers", c.cfg.GetFieldWorkers())
	var progress sweepProgress
	stop := startProgress(c.clock, logger, &progress, c.cfg.GetProgressInterval())
	run, f, err := runs.NewService(store, nil, c.clock).Run(ctx, runs.Request{
		Label:    opts.label,
		Domain:   d,
		Options:  c.cfg.Options(),
		Grid:     g,
		GridStep: step,
		Workers:  c.cfg.GetFieldWorkers(),
		Progress: progress.update,
	})
	stop()
	if err != nil {
		if run != nil {
			logger.Warn("run recorded", "id", run.RunID, "status", run.Status)
		}
		return err
	}

	sum, err := f.Summary()
	if err != nil {
		return err
	}
	logger.Info("sweep complete", "elapsed", f.Elapsed, "points", sum.Points)

	title := opts.label
	if title == "" {
		title = fmt.Sprintf("%gx%g plate", d.Width, d.Height)
	}
	if opts.png != "" {
		if err := writeFile(opts.png, func(w io.Writer) error {
			return render.HeatMapPNG(w, f, render.HeatMapOptions{Title: title})
		}); err != nil {
			return fmt.Errorf("writing heat map: %w", err)
		}
		logger.Info("wrote heat map", "path", opts.png)
	}
	if opts.html != "" {
		if err := writeFile(opts.html, func(w io.Writer) error {
			return render.SurfaceHTML(w, f, render.SurfaceOptions{Title: title})
		}); err != nil {
			return fmt.Errorf("writing surface: %w", err)
		}
		logger.Info("wrote surface", "path", opts.html)
	}
	switch opts.csv {
	case "":
	case "-":
		return f.WriteCSV(c.out)
	default:
		if err := writeFile(opts.csv, f.WriteCSV); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		logger.Info("wrote csv", "path", opts.csv)
	}

	if run != nil {
		fmt.Fprintf(c.out, "run %s\n", run.RunID)
	}
	fmt.Fprintf(c.out, "%d points: min %.3f  p5 %.3f  median %.3f  mean %.3f  p95 %.3f  max %.3f\n",
		sum.Points, sum.Min, sum.P5, sum.Median, sum.Mean, sum.P95, sum.Max)
	return nil
}

// writeFile creates path and streams fn's output into it. Paths outside the
// working directory and the temp directory are refused.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(out)
}
