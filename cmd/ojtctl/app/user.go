package app

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/solvera/ojt-core/internal/bootstrap"
	"github.com/solvera/ojt-core/internal/infrastructure/service"
	"github.com/solvera/ojt-core/pkg/logger"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}

	create := &cobra.Command{
		Use:   "create <login>",
		Short: "Create a portal user",
		Long: `Create a portal user bound to a partner, or an internal staff user with --internal.
The password is read from the first line of stdin.

Example:
  echo 's3cret' | ojtctl user create ayu --partner 6c1f...`,
		Args: cobra.ExactArgs(1),
		RunE: runUserCreate,
	}
	create.Flags().String("partner", "", "Partner id the user acts for")
	create.Flags().Bool("internal", false, "Staff user who may see every participant")

	cmd.AddCommand(create)
	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	partnerID, _ := cmd.Flags().GetString("partner")
	internal, _ := cmd.Flags().GetBool("internal")

	password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && password == "" {
		return fmt.Errorf("read password from stdin: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

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

	u, err := app.Auth.CreateUser(ctx, service.CreateUserParams{
		ID:        uuid.NewString(),
		Login:     args[0],
		Password:  password,
		PartnerID: partnerID,
		Internal:  internal,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	log.Info("user created", logger.String("login", u.Login), logger.String("partner_id", u.PartnerID), logger.Bool("internal", u.Internal))
	return nil
}
