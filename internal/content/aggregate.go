package content

import "strings"

// AggregateGrocery folds ingredients into a grocery list at generation time.
// Entries sharing lower(trim(name)) and category are merged by joining their
// quantity text ("2 lbs" and "1 lb" become "2 lbs + 1 lb"); units are not
// normalized here. Output keeps first-seen order.
func AggregateGrocery(ingredients []Ingredient) []Ingredient {
	index := make(map[string]int, len(ingredients))
	var out []Ingredient
	for _, ing := range ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		category := ing.Category
		if category == "" {
			category = Other
		}
		qty := strings.TrimSpace(ing.Qty)
		if qty == "" {
			qty = "1"
		}

		key := strings.ToLower(name) + "|" + string(category)
		if i, ok := index[key]; ok {
			out[i].Qty = out[i].Qty + " + " + qty
			continue
		}
		index[key] = len(out)
		out = append(out, Ingredient{Name: name, Qty: qty, Category: category})
	}
	return out
}

// PlanIngredients flattens every meal's ingredients in day and meal order.
func PlanIngredients(days []Day) []Ingredient {
	var all []Ingredient
	for _, d := range days {
		for _, m := range d.Meals {
			all = append(all, m.Ingredients...)
		}
	}
	return all
}
