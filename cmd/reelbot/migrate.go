package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, closer := logger.NewLogger(logger.Options{Level: cfg.Logger.Level, JSON: cfg.Logger.JSON})
			defer closer.Close()

			db, err := database.Open(cmd.Context(), cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.CloseDB(db)

			version, err := database.ApplyMigrations(db.DB)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("Database is up to date", "path", cfg.Database.Path, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at migration version %d\n", cfg.Database.Path, version)
			return nil
		},
	}
}
