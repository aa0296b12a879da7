package planner

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"family-ops/internal/content"
)

// ReconcileResult counts what one reconciliation run did.
type ReconcileResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// Reconciler upserts generated meals on their (family, date, meal type)
// key. It never deletes meals.
type Reconciler struct {
	meals  *MealRepository
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(meals *MealRepository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{meals: meals, logger: logger}
}

// Reconcile writes days onto the family's meals for dates. Matching meals
// are updated only when their content differs, so re-running with the same
// days changes nothing. Meals with an unknown type or a date outside dates
// are skipped. A failed write does not stop the run; all failures are
// returned joined after every meal has been tried.
func (r *Reconciler) Reconcile(ctx context.Context, familyID string, dates []string, days []content.Day) (ReconcileResult, error) {
	existing, err := r.meals.ListByDates(ctx, familyID, dates)
	if err != nil {
		return ReconcileResult{}, err
	}
	byKey := make(map[string]Meal, len(existing))
	for _, m := range existing {
		byKey[m.Key()] = m
	}

	var res ReconcileResult
	var errs []error
	for _, day := range days {
		if !slices.Contains(dates, day.Date) {
			r.logger.Warn("meals.reconcile.unexpected_date", "family_id", familyID, "date", day.Date)
			res.Skipped += len(day.Meals)
			continue
		}
		for _, meal := range day.Meals {
			mt, ok := content.ParseMealType(string(meal.MealType))
			if !ok {
				res.Skipped++
				continue
			}
			meal.MealType = mt
			key := mealKey(day.Date, mt)

			if current, ok := byKey[key]; ok {
				if sameContent(current, meal) {
					res.Unchanged++
					continue
				}
				if err := r.meals.Update(ctx, current.ID, meal); err != nil {
					r.logger.Error("meals.reconcile.update_failed", "family_id", familyID, "key", key, "err", err)
					errs = append(errs, err)
					res.Skipped++
					continue
				}
				current.RecipeTitle, current.Ingredients, current.Instructions = meal.RecipeTitle, meal.Ingredients, meal.Instructions
				byKey[key] = current
				res.Updated++
				continue
			}

			created, err := r.meals.Create(ctx, familyID, day.Date, meal)
			if err != nil {
				r.logger.Error("meals.reconcile.create_failed", "family_id", familyID, "key", key, "err", err)
				errs = append(errs, err)
				res.Skipped++
				continue
			}
			byKey[key] = created
			res.Created++
		}
	}
	return res, errors.Join(errs...)
}

func sameContent(m Meal, c content.Meal) bool {
	return m.RecipeTitle == c.RecipeTitle &&
		m.Instructions == c.Instructions &&
		slices.Equal(m.Ingredients, c.Ingredients)
}
