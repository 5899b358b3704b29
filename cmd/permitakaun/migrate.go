package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/webdevsha/permitakaun/migrations"
	"github.com/webdevsha/permitakaun/pkg/database"
	"github.com/webdevsha/permitakaun/pkg/logger"
)

func migrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the embedded SQL schema to the configured PostgreSQL database.

Every statement is idempotent, so running it twice is safe.

Examples:
  permitakaun migrate
  permitakaun migrate --env-file .env.production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return fmt.Errorf("migrate needs the postgres driver, got %s", cfg.Database.Driver)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			schema, err := migrations.Schema()
			if err != nil {
				return fmt.Errorf("failed to read migrations: %w", err)
			}

			db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx, schema); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}
