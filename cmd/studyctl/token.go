package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-study-backend/internal/http/middleware"
	"github.com/tbourn/go-study-backend/internal/sysutil"
)

// newTokenCmd mints development tokens signed with the server's secret.
func newTokenCmd() *cobra.Command {
	var (
		secret, issuer, user string
		ttl                  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret = sysutil.FirstNonEmpty(secret, os.Getenv("JWT_SECRET"))
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			tok, err := middleware.MintToken([]byte(secret), sysutil.FirstNonEmpty(issuer, os.Getenv("JWT_ISSUER")), user, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "HMAC secret (env JWT_SECRET)")
	f.StringVar(&issuer, "issuer", "", "issuer claim (env JWT_ISSUER)")
	f.StringVarP(&user, "user", "u", "", "user id (subject)")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
