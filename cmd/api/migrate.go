package main

import (
	"errors"
	"fmt"

	"pulsewatch/pkg/db"
	"pulsewatch/pkg/logger"

	"github.com/spf13/cobra"
)

func buildMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.UsesPostgres() {
				return errors.New("migrate requires store.driver=postgres")
			}
			log := logger.Init(cfg)

			pool, err := db.ConnectToDB(cmd.Context(), cfg.DB, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			return db.Migrate(cmd.Context(), pool, log)
		},
	}
}
