package main

import (
	"github.com/spf13/cobra"

	"github.com/loomworks/workflow-engine/internal/config"
	"github.com/loomworks/workflow-engine/internal/logging"
	"github.com/loomworks/workflow-engine/internal/repository"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level)

			pool, err := connectDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := repository.NewPostgresWorkflowStore(pool)
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("schema up to date")
			return nil
		},
	}
}
