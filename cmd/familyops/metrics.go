package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"family-ops/internal/metrics"
	"family-ops/internal/telegram"

	"github.com/spf13/cobra"
)

var errNoMetrics = errors.New("metrics are only recorded with the sqlite store")

// NewMetricsCommand creates the metrics command group.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Inspect and prune generation metrics",
	}
	cmd.AddCommand(newMetricsUsageCommand(rootOpts))
	cmd.AddCommand(newMetricsCleanupCommand(rootOpts))
	return cmd
}

func newMetricsUsageCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		days int
		send bool
	)
	cmd := &cobra.Command{
		Use:          "usage",
		Short:        "Report recent generation usage and process health",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Metrics == nil {
				return errNoMetrics
			}

			usage, err := a.Metrics.GetDailyUsage(ctx, days)
			if err != nil {
				return err
			}
			health := metrics.GetSysHealth(filepath.Dir(a.Config.DatabasePath))

			if send {
				n, ok := a.Notifier.(*telegram.Notifier)
				if !ok {
					return errors.New("telegram is not configured")
				}
				return n.SendReport(ctx, usage, health)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), telegram.FormatUsageReport(usage, health))
			return err
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to include")
	cmd.Flags().BoolVar(&send, "send", false, "send the report to the configured Telegram chat")
	return cmd
}

func newMetricsCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:          "cleanup",
		Short:        "Delete metrics older than a number of days",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Metrics == nil {
				return errNoMetrics
			}

			n, err := a.Metrics.Cleanup(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d metric rows\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "older-than", 30, "age in days")
	return cmd
}
