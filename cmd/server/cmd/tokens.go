package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/unisphere-campus/server/internal/config"
)

func newTokensCommand(opts *globalOptions) *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain revoked token records",
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete revocation records for tokens that have already expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			deleted, err := a.users.PurgeExpiredTokens(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired revoked token(s).\n", deleted)
			return nil
		},
	}

	tokensCmd.AddCommand(cleanupCmd)
	return tokensCmd
}
