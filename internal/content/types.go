// Package content holds the shapes of generated household content (meal
// plans and packing lists) and validates untrusted generator output against
// them.
package content

import (
	"strings"

	"family-ops/internal/shared"
)

// MealType is one of the three daily meal slots.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// MealTypes lists the recognized slots in serving order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// ParseMealType normalizes s and reports whether it is a recognized slot.
func ParseMealType(s string) (MealType, bool) {
	mt := MealType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MealTypes {
		if mt == known {
			return mt, true
		}
	}
	return "", false
}

// GroceryCategory classifies grocery ingredients.
type GroceryCategory string

const (
	Produce   GroceryCategory = "Produce"
	Dairy     GroceryCategory = "Dairy"
	Meat      GroceryCategory = "Meat"
	Pantry    GroceryCategory = "Pantry"
	Frozen    GroceryCategory = "Frozen"
	Bakery    GroceryCategory = "Bakery"
	Beverages GroceryCategory = "Beverages"
	Other     GroceryCategory = "Other"
)

// GroceryCategories is the closed set of grocery categories.
var GroceryCategories = []GroceryCategory{Produce, Dairy, Meat, Pantry, Frozen, Bakery, Beverages, Other}

// Valid reports whether c is in the closed set.
func (c GroceryCategory) Valid() bool {
	for _, k := range GroceryCategories {
		if c == k {
			return true
		}
	}
	return false
}

// PackingCategory classifies packing list items.
type PackingCategory string

const (
	Clothes     PackingCategory = "Clothes"
	Toiletries  PackingCategory = "Toiletries"
	Health      PackingCategory = "Health"
	Electronics PackingCategory = "Electronics"
	Documents   PackingCategory = "Documents"
	Misc        PackingCategory = "Misc"
)

// PackingCategories is the closed set of packing categories.
var PackingCategories = []PackingCategory{Clothes, Toiletries, Health, Electronics, Documents, Misc}

// Valid reports whether c is in the closed set.
func (c PackingCategory) Valid() bool {
	for _, k := range PackingCategories {
		if c == k {
			return true
		}
	}
	return false
}

type Ingredient struct {
	Name     string          `json:"name"`
	Qty      string          `json:"qty"`
	Category GroceryCategory `json:"category"`
}

type Meal struct {
	MealType     MealType     `json:"meal_type"`
	RecipeTitle  string       `json:"recipe_title"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions string       `json:"instructions"`
}

type Day struct {
	Date  string `json:"date"`
	Meals []Meal `json:"meals"`
}

// MealPlan is a generated week: meals per day plus the aggregated grocery list.
type MealPlan struct {
	Days    []Day        `json:"days"`
	Grocery []Ingredient `json:"grocery"`
}

// MealCount returns the number of meals across all days.
func (p MealPlan) MealCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.Meals)
	}
	return n
}

type PackingItem struct {
	Name     string          `json:"name"`
	Qty      string          `json:"qty"`
	Category PackingCategory `json:"category"`
}

// PackingList is a generated packing list.
type PackingList struct {
	Items []PackingItem `json:"items"`
}

// Preferences steer meal plan generation.
type Preferences struct {
	FamilySize          int      `json:"familySize,omitempty"`
	DietaryRestrictions []string `json:"dietaryRestrictions,omitempty"`
	CookingTime         int      `json:"cookingTime,omitempty"`
	Budget              string   `json:"budget,omitempty"`
	Dislikes            []string `json:"dislikes,omitempty"`
}

// Vegetarian reports whether the restrictions include "vegetarian".
func (p Preferences) Vegetarian() bool {
	for _, r := range p.DietaryRestrictions {
		if strings.EqualFold(strings.TrimSpace(r), "vegetarian") {
			return true
		}
	}
	return false
}

// Size returns the family size, defaulting to 4.
func (p Preferences) Size() int {
	if p.FamilySize <= 0 {
		return 4
	}
	return p.FamilySize
}

type Traveler struct {
	Type string `json:"type"`
	Age  int    `json:"age"`
}

// Trip describes a journey to pack for.
type Trip struct {
	Title       string     `json:"title,omitempty"`
	Destination string     `json:"destination"`
	StartDate   string     `json:"startDate"`
	EndDate     string     `json:"endDate"`
	Travelers   []Traveler `json:"travelers"`
	Purpose     string     `json:"purpose"`
}

// WithDefaults fills the destination, purpose, dates and travelers the same
// way for the generator prompt and the fallback.
func (t Trip) WithDefaults(today string) Trip {
	t.Destination = strings.TrimSpace(t.Destination)
	if t.Destination == "" {
		t.Destination = "Trip"
	}
	if strings.TrimSpace(t.Purpose) == "" {
		t.Purpose = "vacation"
	}
	if _, err := shared.ParseDate(t.StartDate); err != nil {
		t.StartDate = today
	}
	if _, err := shared.ParseDate(t.EndDate); err != nil {
		t.EndDate, _ = shared.AddDays(t.StartDate, 3)
	}
	if len(t.Travelers) == 0 {
		t.Travelers = []Traveler{{Type: "adult", Age: 30}}
	}
	return t
}

// Days returns the trip length in days, or 3 when the dates do not describe
// a forward range.
func (t Trip) Days() int {
	n, err := shared.DaysBetween(t.StartDate, t.EndDate)
	if err != nil || n < 1 {
		return 3
	}
	return n
}
