package app

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solvera/ojt-core/internal/bootstrap"
	"github.com/solvera/ojt-core/internal/infrastructure/persistence/postgres"
	"github.com/solvera/ojt-core/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, log *logger.Logger) error {
			n, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("migrations applied", logger.Int("count", n))
			return nil
		}),
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last applied migration",
		Long: `Roll back the most recent migration.
WARNING: This operation can result in data loss. Pass --yes to confirm.`,
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, log *logger.Logger) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to roll back without --yes")
			}
			v, err := m.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if v == 0 {
				log.Info("nothing to roll back")
				return nil
			}
			log.Info("migration rolled back", logger.Int("version", v))
			return nil
		}),
	}
	down.Flags().Bool("yes", false, "Confirm the rollback")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator, _ *logger.Logger) error {
			migrations, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, mg := range migrations {
				applied := "pending"
				if mg.IsApplied {
					applied = mg.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", mg.Version, mg.Name, applied)
			}
			return w.Flush()
		}),
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// withMigrator opens the database for the duration of fn.
func withMigrator(fn func(*cobra.Command, *postgres.Migrator, *logger.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		cmd.SetContext(ctx)

		app := &bootstrap.App{Config: cfg, Log: log}
		defer app.Close()

		conn, err := app.OpenDatabase(ctx)
		if err != nil {
			return err
		}
		return fn(cmd, postgres.NewMigrator(conn), log)
	}
}
