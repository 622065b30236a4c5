package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tripsnap/api/internal/middleware"
	"github.com/tripsnap/api/pkg/config"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		secret     string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for the API; the subject becomes the default viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return errors.New("no JWT secret: pass --secret or set auth.jwt_secret")
			}

			now := time.Now()
			token, err := middleware.SignToken(secret, args[0], role, jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config-path", "", "Path to configuration file")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to auth.jwt_secret)")
	cmd.Flags().StringVar(&role, "role", "user", "Role claim: user, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
