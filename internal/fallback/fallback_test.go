package fallback

import (
	"encoding/json"
	"testing"

	"family-ops/internal/content"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var week = []string{
	"2024-06-03", "2024-06-04", "2024-06-05", "2024-06-06",
	"2024-06-07", "2024-06-08", "2024-06-09",
}

func goldenJSON(t *testing.T, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, name, append(data, '\n'))
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	_, err := loadCatalog(catalogYAML)
	require.NoError(t, err)

	_, err = loadCatalog([]byte("breakfast: {options: []}"))
	assert.Error(t, err)
}

func TestMealPlanIsSchemaValid(t *testing.T) {
	v, err := content.NewValidator()
	require.NoError(t, err)

	for _, prefs := range []content.Preferences{
		{},
		{FamilySize: 6, DietaryRestrictions: []string{"vegetarian"}},
	} {
		plan := MealPlan(week, prefs)
		assert.Len(t, plan.Days, 7)
		assert.Equal(t, 21, plan.MealCount())

		raw, err := json.Marshal(plan)
		require.NoError(t, err)
		res := v.MealPlan(raw, week)
		assert.True(t, res.OK(), res.Reason())
	}
}

func TestMealPlanRotatesOptionsByDay(t *testing.T) {
	plan := MealPlan(week, content.Preferences{})

	titles := func(mt int) []string {
		var out []string
		for _, d := range plan.Days {
			out = append(out, d.Meals[mt].RecipeTitle)
		}
		return out
	}
	assert.Equal(t, []string{
		"Spaghetti Bolognese", "Chicken Stir Fry", "Tacos",
		"Spaghetti Bolognese", "Chicken Stir Fry", "Tacos", "Spaghetti Bolognese",
	}, titles(2))
	assert.Equal(t, "Scrambled Eggs & Toast", plan.Days[1].Meals[0].RecipeTitle)
}

func TestMealPlanScalesEggsWithFamilySize(t *testing.T) {
	plan := MealPlan(week[:2], content.Preferences{FamilySize: 5})
	eggs := plan.Days[1].Meals[0].Ingredients[0]
	assert.Equal(t, "Eggs", eggs.Name)
	assert.Equal(t, "10", eggs.Qty)

	defaulted := MealPlan(week[:2], content.Preferences{})
	assert.Equal(t, "8", defaulted.Days[1].Meals[0].Ingredients[0].Qty)
}

func TestMealPlanAggregatesGroceryText(t *testing.T) {
	plan := MealPlan(week, content.Preferences{})

	byName := map[string]string{}
	for _, g := range plan.Grocery {
		byName[g.Name+"|"+string(g.Category)] = g.Qty
	}
	// Spaghetti Bolognese runs on days 0, 3 and 6; Tacos on 2 and 5.
	assert.Equal(t, "1 lb + 1 lb + 1 lb + 1 lb + 1 lb", byName["Ground beef|Meat"])
	assert.Equal(t, "2 lbs + 2 lbs + 2 lbs", byName["Pasta|Pantry"])
}

func TestMealPlanIsDeterministic(t *testing.T) {
	prefs := content.Preferences{FamilySize: 3, DietaryRestrictions: []string{"Vegetarian"}}
	assert.Equal(t, MealPlan(week, prefs), MealPlan(week, prefs))
}

func TestMealPlanGolden(t *testing.T) {
	plan := MealPlan(week[:2], content.Preferences{FamilySize: 3, DietaryRestrictions: []string{"vegetarian"}})
	goldenJSON(t, "meal_plan_vegetarian_two_days", plan)
}

func TestPackingListGolden(t *testing.T) {
	goldenJSON(t, "packing_default", PackingList(content.Trip{}))
}

func TestPackingListScalesClothes(t *testing.T) {
	long := PackingList(content.Trip{StartDate: "2024-06-01", EndDate: "2024-06-20"})
	assert.Equal(t, "7", long.Items[0].Qty)

	short := PackingList(content.Trip{StartDate: "2024-06-01", EndDate: "2024-06-02"})
	assert.Equal(t, "1", short.Items[0].Qty)

	v, err := content.NewValidator()
	require.NoError(t, err)
	raw, err := json.Marshal(long)
	require.NoError(t, err)
	assert.True(t, v.PackingList(raw).OK())
}

func TestSafetyNetContent(t *testing.T) {
	dinner := SafetyNetDinner()
	assert.Equal(t, "Pasta Night", dinner.RecipeTitle)
	assert.Equal(t, content.Dinner, dinner.MealType)

	staples := SafetyNetGrocery()
	require.Len(t, staples, 3)
	assert.Equal(t, "Parmesan", staples[2].Name)
	assert.Equal(t, content.Dairy, staples[2].Category)

	assert.Len(t, BasicPackingItems(), 12)
}
