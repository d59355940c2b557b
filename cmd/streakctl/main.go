// Command streakctl is the operator CLI for schema migrations, identity
// reconciliation, tenant inspection and local test tokens.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	identityservice "streak/internal/identity/service"
	identitystore "streak/internal/identity/store/identity"
	tenantstore "streak/internal/identity/store/tenant"
	"streak/internal/platform/config"
	"streak/internal/platform/database"
	"streak/internal/platform/logger"
	"streak/migrations"
	outboxpostgres "streak/pkg/platform/outbox/store/postgres"
	txcontext "streak/pkg/platform/tx"
)

func main() {
	if err := newRootCmd(postgresEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what each subcommand runs against.
type env struct {
	db       *sql.DB
	identity *identityservice.Service
	close    func()
}

type envFactory func(ctx context.Context) (*env, error)

func postgresEnv(ctx context.Context) (*env, error) {
	cfg := config.FromEnv()
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	db := pool.DB()
	svc := identityservice.New(tenantstore.NewPostgres(db), identitystore.NewPostgres(db), txcontext.NewPostgres(db),
		identityservice.WithLogger(logger.New(cfg.LogLevel, cfg.Environment)),
		identityservice.WithOutbox(outboxpostgres.New(db)),
	)
	return &env{db: db, identity: svc, close: func() { _ = pool.Close() }}, nil //nolint:errcheck // CLI exit
}

func newRootCmd(open envFactory) *cobra.Command {
	root := &cobra.Command{
		Use:          "streakctl",
		Short:        "operate a streak deployment",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(open),
		newResolveCmd(open),
		newTenantCmd(open),
		newTokenCmd(authFromEnv),
	)
	return root
}

func withEnv(cmd *cobra.Command, open envFactory, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := open(ctx)
	if err != nil {
		return err
	}
	if e.close != nil {
		defer e.close()
	}
	return fn(ctx, e)
}

func newMigrateCmd(open envFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, open, func(ctx context.Context, e *env) error {
				if e.db == nil {
					return fmt.Errorf("migrate needs a database")
				}
				applied, err := migrations.Up(ctx, e.db)
				for _, name := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
				}
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				}
				return nil
			})
		},
	}
}
