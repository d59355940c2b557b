package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"streak/internal/identity/models"
)

const (
	userFlag    = "user"
	orgFlag     = "org"
	contextFlag = "context"
	nameFlag    = "name"
)

type resolveOutput struct {
	ExternalUserID  string `json:"external_user_id"`
	TenantID        string `json:"tenant_id"`
	Role            string `json:"role"`
	CanonicalKey    string `json:"canonical_key"`
	TenantCreated   bool   `json:"tenant_created"`
	IdentityCreated bool   `json:"identity_created"`
	Reassigned      bool   `json:"reassigned"`
	PreviousTenant  string `json:"previous_tenant_id,omitempty"`
}

// newResolveCmd runs the same resolution a request would, which is also how
// an identity stuck in the wrong tenant is repaired.
func newResolveCmd(open envFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "resolve a user against an organization or membership context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			signals := models.Signals{}
			signals.ExternalUserID, _ = flags.GetString(userFlag)         //nolint:errcheck // flag is registered
			signals.OrganizationID, _ = flags.GetString(orgFlag)          //nolint:errcheck // flag is registered
			signals.MembershipContextID, _ = flags.GetString(contextFlag) //nolint:errcheck // flag is registered
			signals.DisplayName, _ = flags.GetString(nameFlag)            //nolint:errcheck // flag is registered

			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				res, err := e.identity.Resolve(ctx, signals)
				if err != nil {
					return err
				}
				out := resolveOutput{
					ExternalUserID:  res.Principal.ExternalUserID.String(),
					TenantID:        res.Principal.TenantID.String(),
					Role:            string(res.Principal.Role),
					CanonicalKey:    res.Principal.CanonicalKey,
					TenantCreated:   res.TenantCreated,
					IdentityCreated: res.IdentityCreated,
					Reassigned:      res.Reassigned,
				}
				if res.Reassigned {
					out.PreviousTenant = res.PreviousTenant.String()
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().String(userFlag, "", "external user id (required)")
	cmd.Flags().String(orgFlag, "", "organization id; resolves the user as owner")
	cmd.Flags().String(contextFlag, "", "membership context id; resolves the user as member")
	cmd.Flags().String(nameFlag, "", "tenant display name to attach")
	_ = cmd.MarkFlagRequired(userFlag) //nolint:errcheck // flag is registered
	return cmd
}

func newTenantCmd(open envFactory) *cobra.Command {
	tenant := &cobra.Command{
		Use:   "tenant",
		Short: "inspect tenants",
	}
	tenant.AddCommand(&cobra.Command{
		Use:   "show <canonical-key>",
		Short: "print a tenant and its identity count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				summary, err := e.identity.LookupTenant(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, struct {
					*models.Tenant
					IdentityCount int `json:"identity_count"`
				}{summary.Tenant, summary.IdentityCount})
			})
		},
	})
	return tenant
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
