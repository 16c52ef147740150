package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/db"
)

// runsCommand creates the runs command group for stored field sweeps.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored field sweeps",
	}
	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	cmd.AddCommand(c.runsDeleteCommand())
	return cmd
}

func (c *CLI) runsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := c.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			list, err := db.NewRunStore(database.DB, c.clock).ListRuns(limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTATUS\tLABEL\tPLATE\tGRID\tTRIALS\tCREATED")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%gx%g\t%dx%d\t%d\t%s\n",
					r.RunID, r.Status, r.Label, r.Domain.Width, r.Domain.Height,
					r.Cols, r.Rows, r.Options.Trials, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}

func (c *CLI) runsShowCommand() *cobra.Command {
	var withField bool
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := c.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			store := db.NewRunStore(database.DB, c.clock)
			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			out := map[string]interface{}{"run": run}
			if run.Status == db.RunComplete {
				f, err := store.LoadField(run.RunID)
				if err != nil {
					return err
				}
				sum, err := f.Summary()
				if err != nil {
					return err
				}
				out["summary"] = sum
				if withField {
					out["field"] = f
				}
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&withField, "field", false, "include every grid value")
	return cmd
}

func (c *CLI) runsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete RUN_ID",
		Short: "Delete a run and its points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := c.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.NewRunStore(database.DB, c.clock).DeleteRun(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted %s\n", args[0])
			return nil
		},
	}
}
