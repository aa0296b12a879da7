package main

import (
	"github.com/spf13/cobra"
)

// NewListsCommand creates the lists command group.
func NewListsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Edit grocery and packing lists",
	}
	cmd.AddCommand(newListsShowCommand(rootOpts))
	cmd.AddCommand(newListsAddCommand(rootOpts))
	cmd.AddCommand(newListsReorderCommand(rootOpts))
	return cmd
}

func newListsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show <list-id>",
		Short:        "Print the items of a list in order",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.Lists.Items(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		},
	}
}

func newListsAddCommand(rootOpts *RootOptions) *cobra.Command {
	var quantity, category string
	cmd := &cobra.Command{
		Use:          "add <list-id> <name>",
		Short:        "Add an item, merging with an existing one of the same name",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Lists.AddItem(ctx, args[0], args[1], quantity, category)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&quantity, "qty", "", "quantity")
	cmd.Flags().StringVar(&category, "category", "", "aisle or category")
	return cmd
}

func newListsReorderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "reorder <list-id> <item-id>...",
		Short:        "Place items at positions 0..n-1 in the given order",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Lists.ReorderIDs(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}
