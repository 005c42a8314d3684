package commands

import (
	"context"
	"fmt"

	"commerce-api/config"
	"commerce-api/store"

	"github.com/spf13/cobra"
)

// migrateCmd applies the database schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Apply the products, orders, line items and users schema to the configured
Postgres database. Statements are idempotent, so running it twice is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.DatabaseDriver == config.DriverMemory {
		return fmt.Errorf("migrate needs a Postgres database, DATABASE_DRIVER is %q", cfg.DatabaseDriver)
	}

	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("Database migrations executed successfully")
	return nil
}
