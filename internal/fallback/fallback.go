// Package fallback produces schema-valid meal plans and packing lists without
// any external dependency. Output depends only on the inputs.
package fallback

import (
	_ "embed"
	"fmt"
	"strconv"

	"family-ops/internal/content"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type ingredientSpec struct {
	Name      string                  `yaml:"name"`
	Qty       string                  `yaml:"qty"`
	PerPerson int                     `yaml:"per_person"`
	Category  content.GroceryCategory `yaml:"category"`
}

type variant struct {
	Title       string           `yaml:"title"`
	Ingredients []ingredientSpec `yaml:"ingredients"`
}

type option struct {
	Title       string           `yaml:"title"`
	Ingredients []ingredientSpec `yaml:"ingredients"`
	Vegetarian  *variant         `yaml:"vegetarian"`
}

type slot struct {
	Instructions string   `yaml:"instructions"`
	Options      []option `yaml:"options"`
}

type packingSpec struct {
	Name     string                  `yaml:"name"`
	Qty      string                  `yaml:"qty"`
	PerDay   bool                    `yaml:"per_day"`
	Category content.PackingCategory `yaml:"category"`
}

type catalog struct {
	Breakfast slot `yaml:"breakfast"`
	Lunch     slot `yaml:"lunch"`
	Dinner    slot `yaml:"dinner"`
	SafetyNet struct {
		Dinner struct {
			Title        string           `yaml:"title"`
			Instructions string           `yaml:"instructions"`
			Ingredients  []ingredientSpec `yaml:"ingredients"`
		} `yaml:"dinner"`
		Grocery []ingredientSpec `yaml:"grocery"`
	} `yaml:"safety_net"`
	Packing      []packingSpec `yaml:"packing"`
	BasicPacking []string      `yaml:"basic_packing"`
}

var menu = mustLoad(catalogYAML)

// mustLoad panics on a malformed embedded catalog; that is a build defect,
// caught by the package tests, never a runtime condition.
func mustLoad(data []byte) catalog {
	c, err := loadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

func loadCatalog(data []byte) (catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return catalog{}, fmt.Errorf("failed to parse fallback catalog: %w", err)
	}
	for name, s := range map[string]slot{"breakfast": c.Breakfast, "lunch": c.Lunch, "dinner": c.Dinner} {
		if len(s.Options) == 0 || s.Instructions == "" {
			return catalog{}, fmt.Errorf("fallback catalog: %s has no options", name)
		}
		for _, o := range s.Options {
			if o.Title == "" || len(o.Ingredients) == 0 {
				return catalog{}, fmt.Errorf("fallback catalog: %s option %q is incomplete", name, o.Title)
			}
		}
	}
	if len(c.Packing) == 0 || len(c.BasicPacking) == 0 || len(c.SafetyNet.Grocery) == 0 {
		return catalog{}, fmt.Errorf("fallback catalog: packing or safety net section is empty")
	}
	return c, nil
}

// MealPlan builds breakfast, lunch and dinner for every date.
func MealPlan(dates []string, prefs content.Preferences) content.MealPlan {
	veg := prefs.Vegetarian()
	size := prefs.Size()

	days := make([]content.Day, len(dates))
	for i, date := range dates {
		days[i] = content.Day{
			Date: date,
			Meals: []content.Meal{
				pick(menu.Breakfast, content.Breakfast, i, veg, size),
				pick(menu.Lunch, content.Lunch, i, veg, size),
				pick(menu.Dinner, content.Dinner, i, veg, size),
			},
		}
	}
	return content.MealPlan{
		Days:    days,
		Grocery: content.AggregateGrocery(content.PlanIngredients(days)),
	}
}

func pick(s slot, mealType content.MealType, dayIndex int, vegetarian bool, familySize int) content.Meal {
	o := s.Options[dayIndex%len(s.Options)]
	title, specs := o.Title, o.Ingredients
	if vegetarian && o.Vegetarian != nil {
		if o.Vegetarian.Title != "" {
			title = o.Vegetarian.Title
		}
		if len(o.Vegetarian.Ingredients) > 0 {
			specs = o.Vegetarian.Ingredients
		}
	}
	return content.Meal{
		MealType:     mealType,
		RecipeTitle:  title,
		Ingredients:  ingredients(specs, familySize),
		Instructions: s.Instructions,
	}
}

func ingredients(specs []ingredientSpec, familySize int) []content.Ingredient {
	out := make([]content.Ingredient, len(specs))
	for i, s := range specs {
		qty := s.Qty
		if s.PerPerson > 0 {
			qty = strconv.Itoa(s.PerPerson * familySize)
		}
		if qty == "" {
			qty = "1"
		}
		out[i] = content.Ingredient{Name: s.Name, Qty: qty, Category: s.Category}
	}
	return out
}

// PackingList returns the base packing list; clothing scales with trip length.
func PackingList(trip content.Trip) content.PackingList {
	days := trip.Days()
	if days > 7 {
		days = 7
	}
	items := make([]content.PackingItem, len(menu.Packing))
	for i, p := range menu.Packing {
		qty := p.Qty
		if p.PerDay {
			qty = strconv.Itoa(days)
		}
		items[i] = content.PackingItem{Name: p.Name, Qty: qty, Category: p.Category}
	}
	return content.PackingList{Items: items}
}

// BasicPackingItems are the names used for a packing list created without
// any trip details.
func BasicPackingItems() []string {
	return append([]string(nil), menu.BasicPacking...)
}

// SafetyNetDinner is the single dinner written per day when a generated week
// could not be persisted.
func SafetyNetDinner() content.Meal {
	d := menu.SafetyNet.Dinner
	return content.Meal{
		MealType:     content.Dinner,
		RecipeTitle:  d.Title,
		Ingredients:  ingredients(d.Ingredients, 0),
		Instructions: d.Instructions,
	}
}

// SafetyNetGrocery are the staple items of the last-resort grocery list.
func SafetyNetGrocery() []content.Ingredient {
	return ingredients(menu.SafetyNet.Grocery, 0)
}
