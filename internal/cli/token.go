package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/dock-slot-reservation/internal/config"
	"github.com/iliyamo/dock-slot-reservation/internal/utils"
)

// newTokenCmd mints an access token for an existing user id.  There is no
// login endpoint; operators hand these out.
func newTokenCmd() *cobra.Command {
	var (
		userID uint64
		role   string
		ttl    int
	)

	c := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotenv(); err != nil {
				return err
			}
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if userID == 0 {
				return errors.New("--user-id must be positive")
			}
			if !validRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			tok, err := utils.NewAccessToken(secret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format(time.RFC3339))
			return nil
		},
	}
	c.Flags().Uint64Var(&userID, "user-id", 0, "subject of the token")
	c.Flags().StringVar(&role, "role", "client", "client, operator or admin")
	c.Flags().IntVar(&ttl, "ttl", 60, "lifetime in minutes")
	_ = c.MarkFlagRequired("user-id")
	return c
}
