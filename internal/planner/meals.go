package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"family-ops/internal/content"
	"family-ops/internal/store"
)

var (
	ErrNotFound    = errors.New("meal not found")
	ErrInvalidMeal = errors.New("invalid meal")
)

// Meal is a stored meal. (FamilyID, Date, MealType) identifies it.
type Meal struct {
	ID           string               `json:"id"`
	FamilyID     string               `json:"family_id"`
	Date         string               `json:"date"`
	MealType     content.MealType     `json:"meal_type"`
	RecipeTitle  string               `json:"recipe_title"`
	Ingredients  []content.Ingredient `json:"ingredients"`
	Instructions string               `json:"instructions"`
}

// Key is the meal's identity within a family.
func (m Meal) Key() string {
	return mealKey(m.Date, m.MealType)
}

func mealKey(date string, mt content.MealType) string {
	return date + "|" + string(mt)
}

// MealRepository maps meals onto the record store.
type MealRepository struct {
	gw store.Gateway
}

// NewMealRepository creates a MealRepository.
func NewMealRepository(gw store.Gateway) *MealRepository {
	return &MealRepository{gw: gw}
}

// ListByDates returns the family's meals on the given dates, by date.
func (r *MealRepository) ListByDates(ctx context.Context, familyID string, dates []string) ([]Meal, error) {
	in := make(store.In, len(dates))
	for i, d := range dates {
		in[i] = d
	}
	recs, err := r.gw.List(ctx, store.Meals, store.Query{
		Where:   store.Filter{"family_id": familyID, "date": in},
		OrderBy: []store.Order{store.Asc("date")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list meals for family %s: %w", familyID, err)
	}
	meals := make([]Meal, len(recs))
	for i, rec := range recs {
		meals[i] = toMeal(rec)
	}
	return meals, nil
}

// Get loads one of the family's meals.
func (r *MealRepository) Get(ctx context.Context, familyID, mealID string) (Meal, error) {
	rec, err := store.First(ctx, r.gw, store.Meals, store.Filter{"id": mealID, "family_id": familyID})
	if errors.Is(err, store.ErrNotFound) {
		return Meal{}, fmt.Errorf("%w: %s", ErrNotFound, mealID)
	}
	if err != nil {
		return Meal{}, fmt.Errorf("failed to get meal: %w", err)
	}
	return toMeal(rec), nil
}

// Create inserts a meal for date.
func (r *MealRepository) Create(ctx context.Context, familyID, date string, meal content.Meal) (Meal, error) {
	rec, err := mealRecord(meal)
	if err != nil {
		return Meal{}, err
	}
	rec["family_id"] = familyID
	rec["date"] = date
	rec["meal_type"] = string(meal.MealType)

	created, err := r.gw.Create(ctx, store.Meals, rec)
	if err != nil {
		return Meal{}, fmt.Errorf("failed to create %s on %s: %w", meal.MealType, date, err)
	}
	return toMeal(created), nil
}

// Update replaces a meal's title, ingredients and instructions.
func (r *MealRepository) Update(ctx context.Context, mealID string, meal content.Meal) error {
	rec, err := mealRecord(meal)
	if err != nil {
		return err
	}
	if err := r.gw.Update(ctx, store.Meals, mealID, rec); err != nil {
		return fmt.Errorf("failed to update meal %s: %w", mealID, err)
	}
	return nil
}

// Upsert writes meal on its (family, date, meal type) key and reports
// whether it was created.
func (r *MealRepository) Upsert(ctx context.Context, familyID, date string, meal content.Meal) (Meal, bool, error) {
	existing, err := store.First(ctx, r.gw, store.Meals, store.Filter{
		"family_id": familyID, "date": date, "meal_type": string(meal.MealType),
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		created, err := r.Create(ctx, familyID, date, meal)
		return created, true, err
	case err != nil:
		return Meal{}, false, fmt.Errorf("failed to look up meal: %w", err)
	}
	if err := r.Update(ctx, existing.ID(), meal); err != nil {
		return Meal{}, false, err
	}
	m := toMeal(existing)
	m.RecipeTitle, m.Ingredients, m.Instructions = meal.RecipeTitle, meal.Ingredients, meal.Instructions
	return m, false, nil
}

func mealRecord(meal content.Meal) (store.Record, error) {
	ings := meal.Ingredients
	if ings == nil {
		ings = []content.Ingredient{}
	}
	raw, err := json.Marshal(ings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	return store.Record{
		"recipe_title": meal.RecipeTitle,
		"ingredients":  string(raw),
		"instructions": meal.Instructions,
	}, nil
}

func toMeal(rec store.Record) Meal {
	return Meal{
		ID:           rec.ID(),
		FamilyID:     store.AsString(rec["family_id"]),
		Date:         store.AsString(rec["date"]),
		MealType:     content.MealType(store.AsString(rec["meal_type"])),
		RecipeTitle:  store.AsString(rec["recipe_title"]),
		Ingredients:  parseIngredients(store.AsString(rec["ingredients"])),
		Instructions: store.AsString(rec["instructions"]),
	}
}

// parseIngredients reads the stored column. Older rows hold bare names.
func parseIngredients(raw string) []content.Ingredient {
	if raw == "" {
		return nil
	}
	var ings []content.Ingredient
	if err := json.Unmarshal([]byte(raw), &ings); err == nil {
		return ings
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil
	}
	ings = make([]content.Ingredient, len(names))
	for i, n := range names {
		ings[i] = content.Ingredient{Name: n, Qty: "1", Category: content.Other}
	}
	return ings
}
