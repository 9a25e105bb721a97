package commands

import (
	"fmt"
	"time"

	"ai-review-be/internal/config"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/repository/unitofwork"
	"ai-review-be/internal/service"
	"ai-review-be/pkg/database"

	"github.com/spf13/cobra"
)

func PruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived reviews that completed before a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg := config.Load()
			if cfg.Database.Connection == "" {
				return fmt.Errorf("DB_CONNECTION_STRING is not set")
			}

			db, err := database.Open(cmd.Context(), cfg.Database.Connection, database.DefaultOptions(true), 10*time.Second)
			if err != nil {
				return err
			}
			defer database.Close(db)

			log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
			archive := service.NewArchiveService(unitofwork.NewRepositoryFactory(db), log)
			n, err := archive.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d reviews\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of the oldest review to keep")
	return cmd
}
