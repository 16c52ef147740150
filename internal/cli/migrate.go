package cli

import (
	"bufio"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/platetemp/internal/db"
	"github.com/banshee-data/platetemp/internal/monitoring"
)

// migrateCommand creates the migrate command group. Its subcommands open
// the database without migrating it first.
func (c *CLI) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(c.migrateAction("up", "Apply all pending migrations", cobra.NoArgs,
		func(cmd *cobra.Command, database *db.DB, migrations fs.FS, args []string) error {
			if err := database.MigrateUp(migrations); err != nil {
				return err
			}
			return c.printVersion(database, migrations)
		}))
	cmd.AddCommand(c.migrateAction("down", "Roll back the most recent migration", cobra.NoArgs,
		func(cmd *cobra.Command, database *db.DB, migrations fs.FS, args []string) error {
			if err := database.MigrateDown(migrations); err != nil {
				return err
			}
			return c.printVersion(database, migrations)
		}))
	cmd.AddCommand(c.migrateAction("to VERSION", "Migrate up or down to VERSION", cobra.ExactArgs(1),
		func(cmd *cobra.Command, database *db.DB, migrations fs.FS, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			if err := database.MigrateTo(migrations, uint(v)); err != nil {
				return err
			}
			return c.printVersion(database, migrations)
		}))
	cmd.AddCommand(c.migrateAction("status", "Show the schema version", cobra.NoArgs,
		func(cmd *cobra.Command, database *db.DB, migrations fs.FS, args []string) error {
			status, err := database.MigrationStatus(migrations)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Current version: %d\n", status.CurrentVersion)
			fmt.Fprintf(c.out, "Latest version: %d\n", status.LatestVersion)
			fmt.Fprintf(c.out, "Dirty: %v\n", status.Dirty)
			switch {
			case status.Dirty:
				fmt.Fprintln(c.out, "\nA migration failed mid-execution. Inspect the database, fix it, then run:")
				fmt.Fprintln(c.out, "  platetemp migrate force <version>")
			case status.Pending():
				fmt.Fprintf(c.out, "\n%d migration(s) pending. Run: platetemp migrate up\n", status.LatestVersion-status.CurrentVersion)
			}
			return nil
		}))

	var yes bool
	force := c.migrateAction("force VERSION", "Set the recorded version without migrating (recovery only)", cobra.ExactArgs(1),
		func(cmd *cobra.Command, database *db.DB, migrations fs.FS, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			if !yes {
				fmt.Fprintf(c.out, "Forcing migration version to %d. This should only be used to recover from a dirty migration state.\n", v)
				fmt.Fprint(c.out, "Continue? [y/N]: ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(c.out, "Aborted.")
					return nil
				}
			}
			if err := database.MigrateForce(migrations, v); err != nil {
				return err
			}
			return c.printVersion(database, migrations)
		})
	force.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(force)
	return cmd
}

type migrateFunc func(cmd *cobra.Command, database *db.DB, migrations fs.FS, args []string) error

func (c *CLI) migrateAction(use, short string, args cobra.PositionalArgs, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(c.cfg.GetDatabase())
			if err != nil {
				return err
			}
			defer database.Close()
			monitoring.LoggerFromContext(cmd.Context()).Debug("migrating", "db", c.cfg.GetDatabase(), "action", cmd.Name())
			return fn(cmd, database, db.MigrationsFS(), args)
		},
	}
}

func (c *CLI) printVersion(database *db.DB, migrations fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}
