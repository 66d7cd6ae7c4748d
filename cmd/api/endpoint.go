package main

import (
	"errors"
	"fmt"

	"pulsewatch/internals/app"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/user"
	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildEndpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage monitored endpoints",
	}
	cmd.AddCommand(buildEndpointAddCmd())
	return cmd
}

func buildEndpointAddCmd() *cobra.Command {
	var (
		owner string
		tier  string
		c     monitor.CreateEndpointCmd
	)
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Register an endpoint for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("invalid --owner: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.UsesPostgres() {
				return errors.New("endpoint add requires store.driver=postgres")
			}
			log := logger.Init(cfg)

			ctx := cmd.Context()
			stores, pool, err := app.NewStores(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			switch _, err := stores.Owners.Get(ctx, ownerID); {
			case tier != "" || apperror.IsKind(err, apperror.NotFound):
				if err := stores.Owners.Upsert(ctx, user.Owner{ID: ownerID, Tier: user.ParseTier(tier)}); err != nil {
					return err
				}
			case err != nil:
				return err
			}

			c.OwnerID = ownerID
			c.URL = args[0]
			ep, err := monitor.NewService(stores.Endpoints, stores.Owners, validator.New()).Register(ctx, c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ep.ID.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id (uuid)")
	cmd.Flags().StringVar(&tier, "tier", "", "Create or update the owner with this tier (free, subscriber)")
	cmd.Flags().IntVar(&c.IntervalSec, "interval", 60, "Check interval in seconds")
	cmd.Flags().StringVar(&c.Category, "category", "", "Free-form category")
	cmd.Flags().StringVar(&c.HeaderName, "header-name", "", "Custom request header name")
	cmd.Flags().StringVar(&c.HeaderValue, "header-value", "", "Custom request header value")
	cmd.Flags().StringVar(&c.RequiredText, "require", "", "Text the response body must contain")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
