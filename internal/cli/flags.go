package cli

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/config"
)

// solverFlags are the plate and estimator flags shared by estimate and
// field. A flag only overrides the config when it was given.
type solverFlags struct {
	width    float64
	height   float64
	temps    []float64
	trials   int
	epsilon  float64
	maxSteps int
	seed     uint64
	workers  int

	workersFlag string
}

// register adds the flags to cmd. workersFlag names the flag that sets
// the per-point trial workers, since field uses --workers for points.
func (s *solverFlags) register(cmd *cobra.Command, workersFlag string) {
	s.workersFlag = workersFlag
	f := cmd.Flags()
	f.Float64Var(&s.width, "width", 15, "plate width")
	f.Float64Var(&s.height, "height", 10, "plate height")
	f.Float64SliceVar(&s.temps, "temps", []float64{10, 5, 5, 20}, "edge temperatures: bottom,right,left,top")
	f.IntVarP(&s.trials, "trials", "n", 1000, "random walks per point")
	f.Float64Var(&s.epsilon, "epsilon", 0.05, "absorption distance from a wall")
	f.IntVar(&s.maxSteps, "max-steps", 100000, "step ceiling per walk (0 uses the default)")
	f.Uint64Var(&s.seed, "seed", 0, "random seed (0 picks a fresh seed)")
	f.IntVar(&s.workers, workersFlag, 1, "goroutines sharing the trials of one point")
}

// apply copies every flag the user set into cfg.
func (s *solverFlags) apply(cmd *cobra.Command, cfg *config.SolverConfig) {
	f := cmd.Flags()
	if f.Changed("width") {
		cfg.Width = &s.width
	}
	if f.Changed("height") {
		cfg.Height = &s.height
	}
	if f.Changed("temps") {
		cfg.Temperatures = s.temps
	}
	if f.Changed("trials") {
		cfg.Trials = &s.trials
	}
	if f.Changed("epsilon") {
		cfg.Epsilon = &s.epsilon
	}
	if f.Changed("max-steps") {
		cfg.MaxSteps = &s.maxSteps
	}
	if f.Changed("seed") {
		cfg.Seed = &s.seed
	}
	if f.Changed(s.workersFlag) {
		cfg.Workers = &s.workers
	}
}
