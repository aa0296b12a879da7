package planner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"family-ops/internal/clipper"
	"family-ops/internal/content"
	"family-ops/internal/shared"
)

// RecipeExtractor reads a recipe from a web page.
type RecipeExtractor interface {
	Extract(ctx context.Context, url string) (clipper.Recipe, error)
}

// Importer turns recipe pages into meals.
type Importer struct {
	extractor RecipeExtractor
	meals     *MealRepository
	logger    *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(extractor RecipeExtractor, meals *MealRepository, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{extractor: extractor, meals: meals, logger: logger}
}

// ImportMeal stores the recipe at url as the family's meal for date and
// meal type, replacing whatever was planned there.
func (i *Importer) ImportMeal(ctx context.Context, familyID, date, mealType, url string) (Meal, bool, error) {
	if _, err := shared.ParseDate(date); err != nil {
		return Meal{}, false, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidMeal)
	}
	mt, ok := content.ParseMealType(mealType)
	if !ok {
		return Meal{}, false, fmt.Errorf("%w: unknown meal type %q", ErrInvalidMeal, mealType)
	}

	recipe, err := i.extractor.Extract(ctx, url)
	if err != nil {
		return Meal{}, false, fmt.Errorf("failed to import recipe: %w", err)
	}

	instructions := recipe.Instructions
	if instructions == "" {
		instructions = "See " + url
	}
	meal := content.Meal{
		MealType:     mt,
		RecipeTitle:  recipe.Title,
		Ingredients:  recipeIngredients(recipe.Ingredients),
		Instructions: instructions,
	}
	stored, created, err := i.meals.Upsert(ctx, familyID, date, meal)
	if err != nil {
		return Meal{}, false, err
	}
	i.logger.Info("meals.import", "family_id", familyID, "date", date, "meal_type", mt, "created", created)
	return stored, created, nil
}

var leadingQty = regexp.MustCompile(`^(\d+\s+\d+/\d+|\d+(?:[.,/]\d+)?)\s+(.+)$`)

// recipeIngredients splits a leading amount off each line: "2 cups flour"
// becomes qty "2", name "cups flour". Lines without one get qty "1".
func recipeIngredients(lines []string) []content.Ingredient {
	var out []content.Ingredient
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ing := content.Ingredient{Name: line, Qty: "1", Category: content.Other}
		if m := leadingQty.FindStringSubmatch(line); m != nil {
			ing.Qty, ing.Name = m[1], m[2]
		}
		out = append(out, ing)
	}
	return out
}
