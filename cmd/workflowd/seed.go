package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loomworks/workflow-engine/internal/config"
	"github.com/loomworks/workflow-engine/internal/logging"
	"github.com/loomworks/workflow-engine/internal/repository"
	"github.com/loomworks/workflow-engine/pkg/models"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed example workflow definitions for local development",
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

			// skip anything already seeded
			existing, err := store.ListWorkflows(ctx, nil)
			if err != nil {
				return err
			}
			existingNames := make(map[string]bool, len(existing))
			for _, wf := range existing {
				existingNames[wf.Name] = true
			}

			for _, wf := range seedWorkflows() {
				if existingNames[wf.Name] {
					logger.Info("skipping existing workflow", "name", wf.Name)
					continue
				}
				wf.ApplyDefaults()
				if err := wf.Validate(); err != nil {
					return err
				}
				if err := store.CreateWorkflow(ctx, wf); err != nil {
					logger.Error("failed to seed workflow", "name", wf.Name, "error", err)
					continue
				}
				logger.Info("seeded workflow", "name", wf.Name, "id", wf.ID)
			}

			logger.Info("seeding complete")
			return nil
		},
	}
}

func seedWorkflows() []*models.Workflow {
	nightly := "0 2 * * *"
	return []*models.Workflow{
		{
			ID:      uuid.New().String(),
			Name:    "nightly-report",
			Enabled: true,
			Steps: []models.Step{
				{
					StepID:     "aggregate",
					ServiceURL: "http://data-aggregator:8000/aggregate",
					Method:     "POST",
					Payload:    map[string]any{"window": "24h"},
				},
				{
					StepID:     "notify",
					ServiceURL: "http://notification-service:8000/send",
					Method:     "POST",
					Payload:    map[string]any{"channel": "ops"},
					DependsOn:  []string{"aggregate"},
				},
			},
			Schedule: &nightly,
		},
		{
			ID:      uuid.New().String(),
			Name:    "cache-warmup",
			Enabled: true,
			Steps: []models.Step{
				{
					StepID:     "warm",
					ServiceURL: "http://cache-service:8000/warm",
					Method:     "POST",
					Payload:    map[string]any{"keys": "hot"},
					RetryCount: 2,
					Timeout:    10,
				},
			},
		},
		{
			ID:      uuid.New().String(),
			Name:    "stale-backup-purge",
			Enabled: false,
			Steps: []models.Step{
				{
					StepID:     "purge",
					ServiceURL: "http://backup-service:8000/purge",
					Method:     "POST",
					Payload:    map[string]any{"older_than_days": 30},
				},
			},
		},
	}
}
