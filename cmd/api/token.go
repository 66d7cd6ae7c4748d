package main

import (
	"fmt"

	"pulsewatch/internals/security"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildTokenCmd() *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Issue a status API access token for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tokens, err := security.NewTokenService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateAccessToken(ownerID, scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{security.ScopeStatusRead}, "Scopes to grant")
	return cmd
}
