package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"pulsewatch/internals/app"
	"pulsewatch/internals/server"
	"pulsewatch/pkg/logger"

	"github.com/spf13/cobra"
)

const workerShutdownTimeout = 30 * time.Second

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, alert pipeline and query API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// ctx is cancelled on SIGINT or SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logger.Init(cfg)
			log.Info().Str("store", cfg.Store.Driver).Msg("logger initialized")

			container, err := app.NewContainer(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			log.Info().Msg("dependencies initialized")

			container.Start(ctx)
			log.Info().Msg("background workers started")

			router := app.RegisterRoutes(container)
			srv := server.New(fmt.Sprintf(":%d", cfg.Port), router, log)
			serveErr := srv.Start()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutdown signal received")
			case err = <-serveErr:
				log.Error().Err(err).Msg("stopping after server failure")
			}

			// 1. stop accepting requests
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("server shutdown failed")
			}

			// 2. drain workers and close infra
			shutdownCtx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
			defer cancel()
			if err := container.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("dependencies shutdown failed")
			}

			log.Info().Msg("graceful shutdown complete")
			return err
		},
	}
}
