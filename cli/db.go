package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finnews/finnews/engine/infra/postgres"
	"github.com/finnews/finnews/pkg/config"
	"github.com/finnews/finnews/pkg/logger"
)

func DBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}
	cmd.PersistentFlags().String("url", "", "database connection URL (defaults to configuration)")
	cmd.AddCommand(
		provisionCmd(),
		pingCmd(),
	)
	return cmd
}

func provisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Ensure the target role and database exist (dev only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			prov := postgres.NewProvisioner(postgres.OverridesFromEnv())
			if err := prov.Provision(ctx, url); err != nil {
				logger.FromContext(ctx).Error("Provisioning failed", "error", err)
				return err
			}
			logger.FromContext(ctx).Info("Provisioning complete")
			return nil
		},
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			store, err := postgres.NewStore(ctx, &postgres.Config{URL: url})
			if err != nil {
				return err
			}
			defer store.Close(ctx)
			if err := store.HealthCheck(ctx); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Database is reachable")
			return nil
		},
	}
}

func databaseURL(cmd *cobra.Command) (string, error) {
	url, err := cmd.Flags().GetString("url")
	if err != nil {
		return "", err
	}
	if url != "" {
		return url, nil
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", fmt.Errorf("no database URL configured; set FINNEWS_DATABASE_URL or pass --url")
	}
	return cfg.Database.URL, nil
}
