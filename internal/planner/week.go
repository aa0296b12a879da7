package planner

import (
	"context"
	"fmt"
	"log/slog"

	"family-ops/internal/content"
	"family-ops/internal/fallback"
	"family-ops/internal/generation"
	"family-ops/internal/shared"
	"family-ops/internal/shopping"
)

// MealPlanGenerator produces a week of meals.
type MealPlanGenerator interface {
	MealPlan(ctx context.Context, req generation.MealPlanRequest) (generation.MealPlanOutcome, error)
}

// Notifier delivers a short message to the household.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// WeekRequest asks for a week of meals.
type WeekRequest struct {
	WeekStart   string              `json:"weekStart"`
	Preferences content.Preferences `json:"preferences"`
}

// WeekResult summarizes a generated week.
type WeekResult struct {
	WeekStart    string            `json:"weekStart"`
	ListID       string            `json:"listId"`
	MealsCreated int               `json:"mealsCreated"`
	MealsUpdated int               `json:"mealsUpdated"`
	ItemsCreated int               `json:"itemsCreated"`
	Source       generation.Source `json:"source"`
	// Degraded is set when the safety net replaced the generated week.
	Degraded bool `json:"degraded,omitempty"`
}

// WeekPlanner runs generation, meal reconciliation and the grocery list for
// one week.
type WeekPlanner struct {
	gen        MealPlanGenerator
	meals      *MealRepository
	reconciler *Reconciler
	lists      *shopping.Service
	notifier   Notifier
	logger     *slog.Logger
}

// NewWeekPlanner creates a WeekPlanner. notifier may be nil.
func NewWeekPlanner(gen MealPlanGenerator, meals *MealRepository, lists *shopping.Service, notifier Notifier, logger *slog.Logger) *WeekPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeekPlanner{
		gen:        gen,
		meals:      meals,
		reconciler: NewReconciler(meals, logger),
		lists:      lists,
		notifier:   notifier,
		logger:     logger,
	}
}

// GroceryTitle names the grocery list of the week starting on weekStart.
func GroceryTitle(weekStart string) string {
	return "Groceries • week of " + shared.ShortDay(weekStart)
}

// GenerateWeek generates meals for the week, upserts them and creates one
// new grocery list. When storing the generated week fails, the safety net
// stores a minimal week instead and the result is marked Degraded. Only
// entitlement failures and a failure of the safety net are returned.
func (w *WeekPlanner) GenerateWeek(ctx context.Context, userID, familyID string, req WeekRequest) (WeekResult, error) {
	out, err := w.gen.MealPlan(ctx, generation.MealPlanRequest{
		UserID:      userID,
		FamilyID:    familyID,
		WeekStart:   req.WeekStart,
		Preferences: req.Preferences,
	})
	if err != nil {
		return WeekResult{}, err
	}

	res := WeekResult{WeekStart: out.Dates[0], Source: out.Source}
	if err := w.store(ctx, familyID, out, &res); err != nil {
		w.logger.Error("meals.generate_week.reconcile_failed", "family_id", familyID, "err", err)
		if err := w.safetyNet(ctx, familyID, out.Dates, &res); err != nil {
			return WeekResult{}, fmt.Errorf("failed to generate week: %w", err)
		}
	}

	w.logger.Info("meals.generate_week",
		"family_id", familyID,
		"source", res.Source,
		"created", res.MealsCreated,
		"updated", res.MealsUpdated,
		"items", res.ItemsCreated,
		"degraded", res.Degraded,
	)
	w.notify(ctx, res)
	return res, nil
}

func (w *WeekPlanner) store(ctx context.Context, familyID string, out generation.MealPlanOutcome, res *WeekResult) error {
	rec, err := w.reconciler.Reconcile(ctx, familyID, out.Dates, out.Content.Days)
	res.MealsCreated, res.MealsUpdated = rec.Created, rec.Updated
	if err != nil {
		return err
	}

	grocery := out.Content.Grocery
	if len(grocery) == 0 {
		grocery = content.AggregateGrocery(content.PlanIngredients(out.Content.Days))
	}
	list, n, err := w.lists.CreateGeneratedList(ctx, familyID, shopping.Grocery, GroceryTitle(out.Dates[0]), shopping.GroceryItems(grocery))
	if err != nil {
		return err
	}
	res.ListID, res.ItemsCreated = list.ID, n
	return nil
}

// safetyNet adds a default dinner to each date without one and a fresh
// grocery list of staples.
func (w *WeekPlanner) safetyNet(ctx context.Context, familyID string, dates []string, res *WeekResult) error {
	existing, err := w.meals.ListByDates(ctx, familyID, dates)
	if err != nil {
		return err
	}
	hasDinner := make(map[string]bool, len(dates))
	for _, m := range existing {
		if m.MealType == content.Dinner {
			hasDinner[m.Date] = true
		}
	}

	dinner := fallback.SafetyNetDinner()
	for _, d := range dates {
		if hasDinner[d] {
			continue
		}
		if _, err := w.meals.Create(ctx, familyID, d, dinner); err != nil {
			return err
		}
		res.MealsCreated++
	}

	list, n, err := w.lists.CreateGeneratedList(ctx, familyID, shopping.Grocery, GroceryTitle(dates[0]), shopping.GroceryItems(fallback.SafetyNetGrocery()))
	if err != nil {
		return err
	}
	res.ListID, res.ItemsCreated = list.ID, n
	res.Source = generation.SourceFallback
	res.Degraded = true
	return nil
}

func (w *WeekPlanner) notify(ctx context.Context, res WeekResult) {
	if w.notifier == nil {
		return
	}
	msg := fmt.Sprintf("Meal plan ready: %d new, %d updated meals; %d grocery items (%s)",
		res.MealsCreated, res.MealsUpdated, res.ItemsCreated, res.Source)
	if err := w.notifier.Notify(ctx, msg); err != nil {
		w.logger.Warn("meals.generate_week.notify_failed", "err", err)
	}
}
