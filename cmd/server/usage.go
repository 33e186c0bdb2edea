package main

import (
	"fmt"

	"github.com/nulzo/anthropic-gateway/internal/analytics"
	"github.com/nulzo/anthropic-gateway/internal/cli"
	"github.com/nulzo/anthropic-gateway/internal/config"
	"github.com/nulzo/anthropic-gateway/internal/store/sqlite"
	"github.com/spf13/cobra"
)

func usageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Print daily token usage from the usage store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flagOptions(cmd)
			opts = append(opts, config.BindFlag("usage.dsn", cmd.Flags().Lookup("dsn")))

			cfg, err := config.LoadConfig(opts...)
			if err != nil {
				return err
			}
			if cfg.Usage.DSN == "" {
				return fmt.Errorf("no usage store configured, set usage.dsn or --dsn")
			}

			log := initLogger(cfg)
			repo, err := sqlite.NewSQLiteStorage(cfg.Usage.DSN, log)
			if err != nil {
				return err
			}
			defer repo.Close()

			days, _ := cmd.Flags().GetInt("days")
			stats, err := analytics.NewService(repo).GetUsageOverview(cmd.Context(), days)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.Style(fmt.Sprintf("Usage, last %d days", days), cli.Bold))
			fmt.Fprintln(cmd.OutOrStdout(), cli.PrettyFormat(stats))
			return nil
		},
	}

	cmd.Flags().Int("days", 7, "number of days to aggregate")
	cmd.Flags().String("dsn", "", "sqlite DSN of the usage store")
	return cmd
}
