package generation

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"family-ops/internal/content"
)

//go:embed meal_plan_prompt.md
var mealPlanPrompt string

//go:embed packing_prompt.md
var packingPrompt string

var (
	mealPlanTmpl = template.Must(template.New("MealPlan").Parse(mealPlanPrompt))
	packingTmpl  = template.Must(template.New("Packing").Parse(packingPrompt))
)

type mealPlanPromptData struct {
	FamilySize   int
	CookingTime  int
	Budget       string
	Restrictions string
	Dislikes     string
	Categories   string
	Dates        string
}

type packingPromptData struct {
	Purpose     string
	Destination string
	Duration    int
	StartDate   string
	EndDate     string
	Travelers   string
	Categories  string
}

func buildMealPlanPrompt(prefs content.Preferences, dates []string) (string, error) {
	cookingTime := prefs.CookingTime
	if cookingTime <= 0 {
		cookingTime = 45
	}
	budget := strings.TrimSpace(prefs.Budget)
	if budget == "" {
		budget = "medium"
	}
	categories := make([]string, len(content.GroceryCategories))
	for i, c := range content.GroceryCategories {
		categories[i] = string(c)
	}

	return render(mealPlanTmpl, mealPlanPromptData{
		FamilySize:   prefs.Size(),
		CookingTime:  cookingTime,
		Budget:       budget,
		Restrictions: joinOrNone(prefs.DietaryRestrictions),
		Dislikes:     joinOrNone(prefs.Dislikes),
		Categories:   strings.Join(categories, ", "),
		Dates:        strings.Join(dates, ", "),
	})
}

// buildPackingPrompt expects a trip that already has its defaults applied.
func buildPackingPrompt(trip content.Trip) (string, error) {
	travelers := make([]string, len(trip.Travelers))
	for i, t := range trip.Travelers {
		travelers[i] = fmt.Sprintf("%s (age %d)", t.Type, t.Age)
	}
	categories := make([]string, len(content.PackingCategories))
	for i, c := range content.PackingCategories {
		categories[i] = string(c)
	}

	return render(packingTmpl, packingPromptData{
		Purpose:     trip.Purpose,
		Destination: trip.Destination,
		Duration:    trip.Days(),
		StartDate:   trip.StartDate,
		EndDate:     trip.EndDate,
		Travelers:   strings.Join(travelers, ", "),
		Categories:  strings.Join(categories, ", "),
	})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func joinOrNone(values []string) string {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return "none"
	}
	return strings.Join(kept, ", ")
}
