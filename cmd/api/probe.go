package main

import (
	"encoding/json"
	"fmt"
	"time"

	"pulsewatch/internals/modules/netgate"
	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/scheduler"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildProbeCmd() *cobra.Command {
	var (
		target   probe.Target
		timeout  time.Duration
		skipGate bool
	)
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Probe one URL and print the resulting record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target.URL = args[0]
			ctx := cmd.Context()

			prober := probe.New(probe.Options{Timeout: timeout})
			out := prober.Probe(ctx, target)

			// an empty status counts as reachable
			var gate netgate.Status
			if !skipGate {
				gate = netgate.New(netgate.Options{}).Check(ctx)
			}

			rec := scheduler.BuildRecord(uuid.Nil, out, gate, time.Now())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target.HeaderName, "header-name", "", "Custom request header name")
	cmd.Flags().StringVar(&target.HeaderValue, "header-value", "", "Custom request header value")
	cmd.Flags().StringVar(&target.RequiredText, "require", "", "Text the response body must contain")
	cmd.Flags().DurationVar(&timeout, "timeout", probe.DefaultTimeout, "Probe timeout")
	cmd.Flags().BoolVar(&skipGate, "skip-gate", false, "Do not check the local network first")
	return cmd
}
