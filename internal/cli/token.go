package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quiz-readiness-service/internal/config"
	transport "quiz-readiness-service/internal/transport/http"
)

// NewTokenCmd mints a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			auth := transport.NewAuthenticator(cfg.Auth.JWTSecret)
			if auth == nil {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			if ttl == 0 {
				ttl = config.Duration(cfg.Auth.TokenTTL, 24*time.Hour)
			}
			token, err := auth.SignToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed as uid")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
