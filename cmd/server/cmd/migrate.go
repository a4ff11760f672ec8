package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relayworks/server/internal/config"
	"github.com/relayworks/server/internal/storage/postgres"
)

var (
	migrationsPath   string
	migrateDownSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply or roll back schema migrations.

Examples:
  # Apply all pending migrations
  server migrate up

  # Roll back the most recent migration
  server migrate down --steps 1`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)

		if err := postgres.MigrateUp(cfg.Database.URL, migrationsPath); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := config.NewLogger(cfg.Logging)

		if err := postgres.MigrateDown(cfg.Database.URL, migrationsPath, migrateDownSteps); err != nil {
			return err
		}
		logger.Info().Int("steps", migrateDownSteps).Msg("migrations rolled back")
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: internal/storage/postgres/migrations)")
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}
