package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"family-ops/internal/content"
	"family-ops/internal/entitlement"
	"family-ops/internal/fallback"
	"family-ops/internal/generation"
	"family-ops/internal/llm"
	"family-ops/internal/shopping"
	"family-ops/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var week = []string{
	"2024-06-03", "2024-06-04", "2024-06-05", "2024-06-06",
	"2024-06-07", "2024-06-08", "2024-06-09",
}

type allowAll struct{}

func (allowAll) RequirePro(_ context.Context, userID, familyID string) (entitlement.Member, error) {
	return entitlement.Member{UserID: userID, FamilyID: familyID, Role: entitlement.RoleOwner}, nil
}

// MockTextGenerator never answers before the deadline.
type MockTextGenerator struct{}

func (MockTextGenerator) GenerateContent(ctx context.Context, _ string) (llm.ContentResponse, error) {
	<-ctx.Done()
	return llm.ContentResponse{}, ctx.Err()
}

// stubGenerator returns fixed days for the requested week. grocery, when
// set, is returned as the provider's own grocery list.
type stubGenerator struct {
	days    []content.Day
	grocery []content.Ingredient
	err     error
}

func (s stubGenerator) MealPlan(_ context.Context, req generation.MealPlanRequest) (generation.MealPlanOutcome, error) {
	if s.err != nil {
		return generation.MealPlanOutcome{}, s.err
	}
	plan := content.MealPlan{Days: s.days, Grocery: s.grocery}
	if plan.Grocery == nil {
		plan.Grocery = content.AggregateGrocery(content.PlanIngredients(s.days))
	}
	return generation.MealPlanOutcome{
		Outcome: generation.Outcome[content.MealPlan]{Content: plan, Source: generation.SourceAI},
		Dates:   week,
	}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

// flakyGateway fails every create in one collection while armed.
type flakyGateway struct {
	store.Gateway
	failCollection string
}

func (f *flakyGateway) Create(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	if collection == f.failCollection {
		return nil, errors.New("write rejected")
	}
	return f.Gateway.Create(ctx, collection, rec)
}

func countMeals(t *testing.T, gw store.Gateway, familyID string) int {
	t.Helper()
	recs, err := gw.List(context.Background(), store.Meals, store.Query{Where: store.Filter{"family_id": familyID}})
	require.NoError(t, err)
	return len(recs)
}

func groceryLists(t *testing.T, gw store.Gateway, familyID string) []store.Record {
	t.Helper()
	recs, err := gw.List(context.Background(), store.Lists, store.Query{Where: store.Filter{"family_id": familyID, "type": "grocery"}})
	require.NoError(t, err)
	return recs
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	r := NewReconciler(NewMealRepository(gw), nil)
	plan := fallback.MealPlan(week, content.Preferences{})

	first, err := r.Reconcile(ctx, "fam", week, plan.Days)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Created: 21}, first)

	second, err := r.Reconcile(ctx, "fam", week, plan.Days)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Unchanged: 21}, second)
	assert.Equal(t, 21, countMeals(t, gw, "fam"))
}

func TestReconcileUpdatesByKey(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	repo := NewMealRepository(gw)
	r := NewReconciler(repo, nil)

	_, err := r.Reconcile(ctx, "fam", week, fallback.MealPlan(week, content.Preferences{}).Days)
	require.NoError(t, err)

	veg := fallback.MealPlan(week, content.Preferences{DietaryRestrictions: []string{"Vegetarian"}})
	res, err := r.Reconcile(ctx, "fam", week, veg.Days)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Positive(t, res.Updated)
	assert.Equal(t, 21, res.Updated+res.Unchanged)

	meals, err := repo.ListByDates(ctx, "fam", week[:1])
	require.NoError(t, err)
	for _, m := range meals {
		if m.MealType == content.Dinner {
			assert.Equal(t, "Veggie Pasta", m.RecipeTitle)
		}
	}
}

func TestReconcileSkipsUnknownTypesAndForeignDates(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	r := NewReconciler(NewMealRepository(gw), nil)

	meal := content.Meal{RecipeTitle: "Toast", Instructions: "Toast it", Ingredients: []content.Ingredient{{Name: "Bread", Qty: "1", Category: content.Bakery}}}
	snack, brunch := meal, meal
	snack.MealType = "snack"
	brunch.MealType = "Breakfast"

	res, err := r.Reconcile(ctx, "fam", week, []content.Day{
		{Date: week[0], Meals: []content.Meal{snack, brunch}},
		{Date: "2030-01-01", Meals: []content.Meal{brunch}},
	})
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Created: 1, Skipped: 2}, res)
}

func TestReconcileReportsFailuresAfterTryingEveryMeal(t *testing.T) {
	ctx := context.Background()
	gw := &flakyGateway{Gateway: store.NewMemory(), failCollection: store.Meals}
	r := NewReconciler(NewMealRepository(gw), nil)

	res, err := r.Reconcile(ctx, "fam", week, fallback.MealPlan(week, content.Preferences{}).Days)
	require.Error(t, err)
	assert.Equal(t, 21, res.Skipped)
}

func TestGenerateWeekTimeoutScenario(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	v, err := content.NewValidator()
	require.NoError(t, err)
	orch := generation.New(allowAll{}, MockTextGenerator{}, v, generation.WithTimeout(10*time.Millisecond))
	notifier := &recordingNotifier{}
	w := NewWeekPlanner(orch, NewMealRepository(gw), shopping.NewService(gw, nil), notifier, nil)

	res, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{WeekStart: "2024-06-05"})
	require.NoError(t, err)

	assert.Equal(t, generation.SourceFallback, res.Source)
	assert.Equal(t, "2024-06-03", res.WeekStart)
	assert.Equal(t, 21, res.MealsCreated)
	assert.False(t, res.Degraded)
	assert.Equal(t, 21, countMeals(t, gw, "fam"))

	lists := groceryLists(t, gw, "fam")
	require.Len(t, lists, 1)
	assert.Equal(t, "Groceries • week of Jun 3", lists[0]["title"])
	assert.Equal(t, res.ListID, lists[0].ID())

	items, err := shopping.NewService(gw, nil).Items(ctx, res.ListID)
	require.NoError(t, err)
	assert.Equal(t, res.ItemsCreated, len(items))
	for i, it := range items {
		assert.Equal(t, i, it.Position)
		assert.True(t, content.GroceryCategory(it.Category).Valid(), it.Category)
	}

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "Meal plan ready: 21 new, 0 updated meals")
	assert.Contains(t, notifier.messages[0], "(fallback)")
}

func TestGenerateWeekTwiceCreatesNewListButNoDuplicateMeals(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	days := fallback.MealPlan(week, content.Preferences{}).Days
	w := NewWeekPlanner(stubGenerator{days: days}, NewMealRepository(gw), shopping.NewService(gw, nil), nil, nil)

	first, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{})
	require.NoError(t, err)
	second, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{})
	require.NoError(t, err)

	assert.Equal(t, 21, first.MealsCreated)
	assert.Zero(t, second.MealsCreated)
	assert.NotEqual(t, first.ListID, second.ListID)
	assert.Equal(t, 21, countMeals(t, gw, "fam"))
	assert.Len(t, groceryLists(t, gw, "fam"), 2)
}

func TestGenerateWeekFailsWhenSafetyNetCannotWrite(t *testing.T) {
	ctx := context.Background()
	days := fallback.MealPlan(week, content.Preferences{}).Days

	for _, collection := range []string{store.ListItems, store.Meals} {
		t.Run(collection, func(t *testing.T) {
			gw := &flakyGateway{Gateway: store.NewMemory(), failCollection: collection}
			w := NewWeekPlanner(stubGenerator{days: days}, NewMealRepository(gw), shopping.NewService(gw, nil), nil, nil)

			_, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{})
			assert.Error(t, err)
			assert.Empty(t, groceryLists(t, gw, "fam"), "no half-written list is left")
		})
	}
}

func TestGenerateWeekSafetyNetFillsMissingDinners(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewMealRepository(mem)

	// Tuesday already has a dinner.
	_, err := repo.Create(ctx, "fam", week[1], content.Meal{MealType: content.Dinner, RecipeTitle: "Leftovers", Instructions: "Reheat"})
	require.NoError(t, err)

	// The first grocery item write fails, so the generated week is replaced.
	days := []content.Day{{Date: week[0], Meals: []content.Meal{{MealType: content.Lunch, RecipeTitle: "Soup", Instructions: "Heat",
		Ingredients: []content.Ingredient{{Name: "Soup", Qty: "1", Category: content.Pantry}}}}}}
	gw := &failOnce{Gateway: mem, collection: store.ListItems}
	w := NewWeekPlanner(stubGenerator{days: days}, NewMealRepository(gw), shopping.NewService(gw, nil), nil, nil)

	res, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, generation.SourceFallback, res.Source)
	assert.Equal(t, 1+6, res.MealsCreated, "the lunch plus a dinner on every day but Tuesday")
	assert.Equal(t, 3, res.ItemsCreated)

	meals, err := repo.ListByDates(ctx, "fam", week)
	require.NoError(t, err)
	dinners := map[string]string{}
	for _, m := range meals {
		if m.MealType == content.Dinner {
			dinners[m.Date] = m.RecipeTitle
		}
	}
	assert.Len(t, dinners, 7)
	assert.Equal(t, "Leftovers", dinners[week[1]])
	assert.Equal(t, "Pasta Night", dinners[week[0]])

	items, err := shopping.NewService(mem, nil).Items(ctx, res.ListID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Pasta", items[0].Name)
	assert.Equal(t, "2 lbs", items[0].Quantity)

	lists := groceryLists(t, mem, "fam")
	require.Len(t, lists, 1)
	assert.Equal(t, res.ListID, lists[0].ID())
}

func TestGenerateWeekFoldsGroceryNames(t *testing.T) {
	ctx := context.Background()
	gw := store.NewMemory()
	gen := stubGenerator{
		days: fallback.MealPlan(week, content.Preferences{}).Days,
		grocery: []content.Ingredient{
			{Name: "Milk", Qty: "1 gal", Category: content.Dairy},
			{Name: "milk ", Qty: "2 qt", Category: content.Dairy},
			{Name: "Bread", Qty: "1 loaf", Category: content.Bakery},
		},
	}
	w := NewWeekPlanner(gen, NewMealRepository(gw), shopping.NewService(gw, nil), nil, nil)

	res, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsCreated)

	items, err := shopping.NewService(gw, nil).Items(ctx, res.ListID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Milk", items[0].Name)
	assert.Equal(t, "1 gal + 2 qt", items[0].Quantity)
	assert.Equal(t, "Bread", items[1].Name)
}

// failNth fails the nth create in one collection.
type failNth struct {
	store.Gateway
	collection string
	n          int
}

func (f *failNth) Create(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	if collection == f.collection {
		f.n--
		if f.n == 0 {
			return nil, errors.New("write rejected")
		}
	}
	return f.Gateway.Create(ctx, collection, rec)
}

func TestGenerateWeekKeepsOneListWhenAnItemWriteFails(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	gen := stubGenerator{
		days: fallback.MealPlan(week, content.Preferences{}).Days,
		grocery: []content.Ingredient{
			{Name: "Eggs", Qty: "12", Category: content.Dairy},
			{Name: "Bread", Qty: "1 loaf", Category: content.Bakery},
			{Name: "Oats", Qty: "1 bag", Category: content.Pantry},
		},
	}
	gw := &failNth{Gateway: mem, collection: store.ListItems, n: 2}
	w := NewWeekPlanner(gen, NewMealRepository(gw), shopping.NewService(gw, nil), nil, nil)

	res, err := w.GenerateWeek(ctx, "u1", "fam", WeekRequest{})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.ItemsCreated)

	lists := groceryLists(t, mem, "fam")
	require.Len(t, lists, 1)
	assert.Equal(t, res.ListID, lists[0].ID())

	items, err := shopping.NewService(mem, nil).Items(ctx, res.ListID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Eggs", items[0].Name)
	assert.Equal(t, "Oats", items[1].Name)
	assert.Equal(t, 1, items[1].Position)
}

// failOnce fails the first create in one collection.
type failOnce struct {
	store.Gateway
	collection string
	done       bool
}

func (f *failOnce) Create(ctx context.Context, collection string, rec store.Record) (store.Record, error) {
	if collection == f.collection && !f.done {
		f.done = true
		return nil, errors.New("write rejected")
	}
	return f.Gateway.Create(ctx, collection, rec)
}

func TestGenerateWeekPropagatesEntitlement(t *testing.T) {
	gw := store.NewMemory()
	w := NewWeekPlanner(stubGenerator{err: entitlement.ErrNotMember}, NewMealRepository(gw), shopping.NewService(gw, nil), nil, nil)

	_, err := w.GenerateWeek(context.Background(), "u1", "fam", WeekRequest{})
	assert.ErrorIs(t, err, entitlement.ErrNotMember)
	assert.Zero(t, countMeals(t, gw, "fam"))
}
