package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/storage/backend"
)

func newMigrateCommand(opts *globalOptions) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Manage the schema for the configured STORAGE_DRIVER (postgres or sqlite).

Examples:
  # Apply all pending migrations
  server migrate up

  # Roll back the most recent migration
  server migrate down --steps 1`,
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)
			if err := backend.MigrateUp(cfg.Database); err != nil {
				return err
			}
			logger.Info().Str("storage_driver", cfg.Database.Driver).Msg("migrations applied")
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)
			if err := backend.MigrateDown(cfg.Database, steps); err != nil {
				return err
			}
			logger.Info().Str("storage_driver", cfg.Database.Driver).Int("steps", steps).Msg("migrations rolled back")
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s).\n", steps)
			return nil
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(upCmd, downCmd)
	return migrateCmd
}
