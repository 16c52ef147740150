// Package cli implements the platetemp command-line interface.
//
// Commands estimate single points (estimate), sweep whole plates (field),
// serve the HTTP API (serve), inspect stored sweeps (runs) and manage the
// database schema (migrate). Settings come from an optional --config file;
// flags given on the command line override it.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/config"
	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/monitoring"
	"github.com/banshee-data/platetemp/internal/plate"
	"github.com/banshee-data/platetemp/internal/timeutil"
	"github.com/banshee-data/platetemp/internal/version"
)

// ExitInterrupted is the exit status after SIGINT, following the shell
// convention of 128 + signal number.
const ExitInterrupted = 130

// CLI holds state shared by all commands.
type CLI struct {
	out    io.Writer
	errOut io.Writer
	clock  timeutil.Clock

	configPath string
	dbPath     string
	verbose    bool

	cfg *config.SolverConfig
}

// New returns a CLI printing results to out and logs to errOut.
func New(out, errOut io.Writer) *CLI {
	return &CLI{out: out, errOut: errOut, clock: timeutil.RealClock{}}
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "platetemp",
		Short:         "Estimate steady-state plate temperatures by walk on spheres",
		Long:          `platetemp estimates the steady-state temperature inside a rectangular plate whose four edges are held at fixed temperatures, using Monte Carlo random walks.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.SetVersionTemplate(version.Get().String())

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "solver config file (.json, .yaml, .yml or .toml)")
	flags.StringVar(&c.dbPath, "db", "", "SQLite database path (default from config, else platetemp.db)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.estimateCommand())
	root.AddCommand(c.fieldCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.migrateCommand())
	return root
}

// setup loads the config and attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command) error {
	cfg := config.EmptySolverConfig()
	if c.configPath != "" {
		loaded, err := config.LoadSolverConfig(c.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.dbPath != "" {
		cfg.Database = &c.dbPath
	}
	c.cfg = cfg

	logger, err := monitoring.NewLogger(c.errOut, monitoring.LoggerOptions{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.GetLogFormat(),
		Verbose: c.verbose,
	})
	if err != nil {
		return err
	}
	monitoring.RouteLogf(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(monitoring.WithLogger(ctx, logger))
	if c.configPath != "" {
		logger.Debug("loaded config", "path", c.configPath)
	}
	return nil
}

// openDB opens and migrates the configured database.
func (c *CLI) openDB() (*db.DB, error) {
	return db.Open(c.cfg.GetDatabase())
}

// Execute runs the CLI with args under ctx.
func Execute(ctx context.Context, out, errOut io.Writer, args []string) error {
	root := New(out, errOut).RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), errors.Is(err, plate.ErrCancelled):
		return ExitInterrupted
	default:
		return 1
	}
}
