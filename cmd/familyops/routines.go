package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"family-ops/internal/app"
	"family-ops/internal/routine"
	"family-ops/internal/shared"

	"github.com/spf13/cobra"
)

// NewRoutinesCommand creates the routines command group.
func NewRoutinesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routines",
		Short: "Check off routine tasks and maintain task logs",
	}
	cmd.AddCommand(newRoutinesToggleCommand(rootOpts))
	cmd.AddCommand(newRoutinesStatesCommand(rootOpts))
	cmd.AddCommand(newRoutinesMigrateCommand(rootOpts))
	return cmd
}

func newRoutinesToggleCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		date, server, token string
		unchecked           bool
	)
	cmd := &cobra.Command{
		Use:   "toggle <routine-id> <task-index>",
		Short: "Check or uncheck one task for a day",
		Long: `Check or uncheck one task for a day.

With --server the toggle goes through the HTTP API and falls back to
writing the local store when the server cannot be reached.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid task index %q", args[1])
			}

			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = shared.TodayISO(time.Now(), a.Location)
			}
			res, err := a.ToggleClient(server, token).Toggle(ctx, routine.ToggleRequest{
				RoutineID: args[0],
				TaskIndex: &idx,
				Date:      date,
				Checked:   !unchecked,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to toggle (YYYY-MM-DD); defaults to today")
	cmd.Flags().BoolVar(&unchecked, "unchecked", false, "uncheck the task instead of checking it")
	cmd.Flags().StringVar(&server, "server", "", "base URL of a running familyops server")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for --server")
	return cmd
}

func newRoutinesStatesCommand(rootOpts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:          "states <routine-id>",
		Short:        "Show which tasks are checked on a day",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if date == "" {
				date = shared.TodayISO(time.Now(), a.Location)
			}
			states, err := a.Routines.TaskStates(ctx, args[0], date)
			if err != nil {
				return err
			}
			return printJSON(cmd, states)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to show (YYYY-MM-DD); defaults to today")
	return cmd
}

func newRoutinesMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate-legacy",
		Short:        "Move legacy task logs out of the routine log collection",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := migrateOnStart(ctx, a)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func migrateOnStart(ctx context.Context, a *app.App) (routine.MigrationResult, error) {
	return routine.MigrateLegacyTaskLogs(ctx, a.Store, a.Logger)
}
