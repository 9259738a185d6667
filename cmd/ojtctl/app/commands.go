// Package app holds the ojtctl commands.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/bootstrap"
	"github.com/solvera/ojt-core/pkg/logger"
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "ojtctl",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Operate the OJT service",
		Long: `ojtctl manages the OJT database schema, runs background jobs on demand
and creates portal users. Configuration is read from the environment and .env,
like the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().String("env-file", "", "Path of the .env file to load (default .env)")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newJobCmd())
	root.AddCommand(newUserCmd())
	return root
}

// setup loads configuration and a console logger for a command.
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		if err := os.Setenv("ENV_FILE", path); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	obs := cfg.Observability
	obs.LogFormat = "console"
	return cfg, bootstrap.NewLogger(obs), nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
