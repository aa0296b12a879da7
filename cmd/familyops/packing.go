package main

import (
	"fmt"
	"strconv"
	"strings"

	"family-ops/internal/content"

	"github.com/spf13/cobra"
)

// NewPackingCommand creates the packing command group.
func NewPackingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packing",
		Short: "Build packing lists",
	}
	cmd.AddCommand(newPackingGenerateCommand(rootOpts))
	return cmd
}

func newPackingGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		familyID, userID string
		travelers        []string
		trip             content.Trip
	)
	cmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate a packing list for a trip",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseTravelers(travelers)
			if err != nil {
				return err
			}
			trip.Travelers = parsed

			ctx := cmd.Context()
			a, err := rootOpts.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Packing.CreateFromTrip(ctx, userID, familyID, trip)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&familyID, "family", "", "family id")
	cmd.Flags().StringVar(&userID, "user", "", "acting user id")
	cmd.Flags().StringVar(&trip.Title, "title", "", "list title")
	cmd.Flags().StringVar(&trip.Destination, "destination", "", "where the trip goes")
	cmd.Flags().StringVar(&trip.StartDate, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&trip.EndDate, "end", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&trip.Purpose, "purpose", "", "trip purpose")
	cmd.Flags().StringSliceVar(&travelers, "traveler", nil, "traveler as type:age, repeatable (e.g. adult:38,child:6)")
	_ = cmd.MarkFlagRequired("family")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func parseTravelers(raw []string) ([]content.Traveler, error) {
	out := make([]content.Traveler, 0, len(raw))
	for _, r := range raw {
		kind, ageStr, found := strings.Cut(strings.TrimSpace(r), ":")
		t := content.Traveler{Type: kind}
		if found {
			age, err := strconv.Atoi(ageStr)
			if err != nil || age < 0 {
				return nil, fmt.Errorf("invalid traveler %q: age must be a non-negative number", r)
			}
			t.Age = age
		}
		if t.Type == "" {
			return nil, fmt.Errorf("invalid traveler %q: missing type", r)
		}
		out = append(out, t)
	}
	return out, nil
}
