package main

import (
	"pulsewatch/config"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "env.yaml"

var configFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pulsewatch",
		Short:         "HTTP uptime probing, SLO tracking and alerting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "Path to the YAML configuration file")

	rootCmd.AddCommand(
		buildServeCmd(),
		buildProbeCmd(),
		buildMigrateCmd(),
		buildEndpointCmd(),
		buildTokenCmd(),
	)
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configFile)
}
