package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"streak/internal/platform/config"
	"streak/internal/platformauth"
	id "streak/pkg/domain"
)

// newTokenCmd signs a platform user token with PLATFORM_TOKEN_SECRET for
// local testing. Production tokens come from the hosting platform.
func newTokenCmd(cfg func() config.AuthConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "sign a platform user token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, _ := cmd.Flags().GetString(userFlag) //nolint:errcheck // flag is registered
			name, _ := cmd.Flags().GetString(nameFlag) //nolint:errcheck // flag is registered
			ttl, _ := cmd.Flags().GetDuration("ttl")   //nolint:errcheck // flag is registered
			userID, err := id.ParseExternalUserID(user)
			if err != nil {
				return err
			}
			auth := cfg()
			var opts []platformauth.Option
			if auth.TokenIssuer != "" {
				opts = append(opts, platformauth.WithIssuer(auth.TokenIssuer))
			}
			token, err := platformauth.NewVerifier(auth.TokenSecret, opts...).Sign(userID, name, time.Now(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String(userFlag, "", "external user id (required)")
	cmd.Flags().String(nameFlag, "", "display name claim")
	cmd.Flags().Duration("ttl", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired(userFlag) //nolint:errcheck // flag is registered
	return cmd
}

func authFromEnv() config.AuthConfig {
	return config.FromEnv().Auth
}
