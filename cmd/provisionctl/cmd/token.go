package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"provision-risk-lab/internal/api"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		issuer  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API server",
		Long: `Sign an HS256 token with the secret in JWT_SECRET. The subject owns
every simulation created with the token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			tok, err := api.IssueToken([]byte(secret), issuer, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	cmd.Flags().StringVar(&issuer, "issuer", "provision-risk-lab", "token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
