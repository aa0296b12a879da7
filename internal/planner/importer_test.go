package planner

import (
	"context"
	"errors"
	"testing"

	"family-ops/internal/clipper"
	"family-ops/internal/content"
	"family-ops/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	recipe clipper.Recipe
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (clipper.Recipe, error) {
	f.calls++
	if f.err != nil {
		return clipper.Recipe{}, f.err
	}
	r := f.recipe
	r.SourceURL = url
	return r, nil
}

func TestRecipeIngredients(t *testing.T) {
	got := recipeIngredients([]string{
		"2 cups flour",
		"1 1/2 tsp salt",
		"0.5 lb butter",
		"  ",
		"Salt to taste",
	})
	assert.Equal(t, []content.Ingredient{
		{Name: "cups flour", Qty: "2", Category: content.Other},
		{Name: "tsp salt", Qty: "1 1/2", Category: content.Other},
		{Name: "lb butter", Qty: "0.5", Category: content.Other},
		{Name: "Salt to taste", Qty: "1", Category: content.Other},
	}, got)
}

func TestImportMeal(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	ex := &fakeExtractor{recipe: clipper.Recipe{
		Title:       "Banana Bread",
		Ingredients: []string{"3 bananas", "2 cups flour"},
	}}
	imp := NewImporter(ex, NewMealRepository(gw), nil)

	meal, created, err := imp.ImportMeal(ctx, "fam", "2024-06-03", "Dinner", "https://example.com/bread")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, content.Dinner, meal.MealType)
	assert.Equal(t, "Banana Bread", meal.RecipeTitle)
	assert.Equal(t, "See https://example.com/bread", meal.Instructions)
	require.Len(t, meal.Ingredients, 2)
	assert.Equal(t, "bananas", meal.Ingredients[0].Name)

	ex.recipe = clipper.Recipe{Title: "Zucchini Bread", Instructions: "Bake."}
	again, created, err := imp.ImportMeal(ctx, "fam", "2024-06-03", "dinner", "https://example.com/zucchini")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, meal.ID, again.ID)

	stored, err := NewMealRepository(gw).Get(ctx, "fam", meal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zucchini Bread", stored.RecipeTitle)
	assert.Equal(t, "Bake.", stored.Instructions)
}

func TestImportMealRejectsBadInput(t *testing.T) {
	ex := &fakeExtractor{}
	imp := NewImporter(ex, NewMealRepository(store.NewMemory()), nil)

	_, _, err := imp.ImportMeal(context.Background(), "fam", "June 3", "dinner", "https://example.com")
	assert.ErrorIs(t, err, ErrInvalidMeal)

	_, _, err = imp.ImportMeal(context.Background(), "fam", "2024-06-03", "snack", "https://example.com")
	assert.ErrorIs(t, err, ErrInvalidMeal)
	assert.Zero(t, ex.calls)
}

func TestImportMealExtractorFailure(t *testing.T) {
	gw := store.NewMemory()
	imp := NewImporter(&fakeExtractor{err: clipper.ErrNoRecipe}, NewMealRepository(gw), nil)

	_, _, err := imp.ImportMeal(context.Background(), "fam", "2024-06-03", "lunch", "https://example.com")
	assert.True(t, errors.Is(err, clipper.ErrNoRecipe))
	assert.Zero(t, countMeals(t, gw, "fam"))
}

func TestMealRepositoryReadsLegacyIngredients(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	rec, err := gw.Create(ctx, store.Meals, store.Record{
		"family_id": "fam", "date": "2024-06-03", "meal_type": "lunch",
		"recipe_title": "Salad", "ingredients": `["Lettuce","Tomato"]`,
	})
	require.NoError(t, err)

	meal, err := NewMealRepository(gw).Get(ctx, "fam", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, []content.Ingredient{
		{Name: "Lettuce", Qty: "1", Category: content.Other},
		{Name: "Tomato", Qty: "1", Category: content.Other},
	}, meal.Ingredients)

	_, err = NewMealRepository(gw).Get(ctx, "other", rec.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}
