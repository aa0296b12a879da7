package main

import (
	"family-ops/internal/content"
	"family-ops/internal/planner"

	"github.com/spf13/cobra"
)

// NewMealsCommand creates the meals command group.
func NewMealsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meals",
		Short: "Plan and import meals",
	}
	cmd.AddCommand(newMealsGenerateCommand(rootOpts))
	cmd.AddCommand(newMealsImportCommand(rootOpts))
	return cmd
}

func newMealsGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		familyID, userID, week string
		prefs                  content.Preferences
	)
	cmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate a week of meals and its grocery list",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Weeks.GenerateWeek(ctx, userID, familyID, planner.WeekRequest{WeekStart: week, Preferences: prefs})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&familyID, "family", "", "family id")
	cmd.Flags().StringVar(&userID, "user", "", "acting user id")
	cmd.Flags().StringVar(&week, "week", "", "any date in the target week (YYYY-MM-DD); defaults to the current week")
	cmd.Flags().IntVar(&prefs.FamilySize, "family-size", 0, "number of people to cook for")
	cmd.Flags().StringSliceVar(&prefs.DietaryRestrictions, "diet", nil, "dietary restrictions")
	cmd.Flags().IntVar(&prefs.CookingTime, "cooking-time", 0, "maximum cooking time in minutes")
	cmd.Flags().StringVar(&prefs.Budget, "budget", "", "budget level")
	cmd.Flags().StringSliceVar(&prefs.Dislikes, "dislike", nil, "ingredients to avoid")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newMealsImportCommand(rootOpts *RootOptions) *cobra.Command {
	var familyID, date, mealType string
	cmd := &cobra.Command{
		Use:          "import <url>",
		Short:        "Import a recipe page as a meal",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			meal, created, err := a.Importer.ImportMeal(ctx, familyID, date, mealType, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"meal": meal, "created": created})
		},
	}
	cmd.Flags().StringVar(&familyID, "family", "", "family id")
	cmd.Flags().StringVar(&date, "date", "", "meal date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&mealType, "type", "dinner", "breakfast, lunch or dinner")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
