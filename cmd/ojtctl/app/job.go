package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solvera/ojt-core/internal/bootstrap"
	"github.com/solvera/ojt-core/internal/infrastructure/scheduler/jobs"
	"github.com/solvera/ojt-core/pkg/logger"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Run background jobs on demand",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range []string{jobs.NameAutoAbsent, jobs.NameAutoCheckout, jobs.NameMetricsRefresh} {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one job now, under the same lock the worker takes",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	cmd.AddCommand(list, run)
	return cmd
}

func runJob(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := app.Scheduler()
	if err != nil {
		return err
	}
	res, err := sched.RunNow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("job %s: %w (known jobs: %s)", args[0], err, strings.Join(app.JobNames(), ", "))
	}
	if res.Skipped {
		log.Warn("job skipped, another replica holds its lock", logger.String("job", res.JobName))
		return nil
	}
	log.Info("job completed", logger.String("job", res.JobName), logger.Duration("duration", res.Duration))
	return nil
}
