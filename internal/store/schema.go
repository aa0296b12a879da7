package store

import "fmt"

type columnSet struct {
	names []string
	index map[string]struct{}
}

func (c columnSet) has(name string) bool {
	_, ok := c.index[name]
	return ok
}

func newColumnSet(names ...string) columnSet {
	idx := make(map[string]struct{}, len(names))
	for _, n := range names {
		idx[n] = struct{}{}
	}
	return columnSet{names: names, index: idx}
}

// schemas mirrors internal/database/migrations; it doubles as the column
// whitelist for SQL generation.
var schemas = map[string]columnSet{
	Families:        newColumnSet("id", "name", "created_at"),
	FamilyMembers:   newColumnSet("id", "family_id", "user_id", "role", "created_at"),
	Children:        newColumnSet("id", "family_id", "name", "created_at"),
	Subscriptions:   newColumnSet("id", "family_id", "status", "trial_ends_at", "current_period_end", "created_at"),
	Routines:        newColumnSet("id", "family_id", "child_id", "title", "schedule", "streak_count", "created_at", "updated_at"),
	RoutineTaskLogs: newColumnSet("id", "routine_id", "task_index", "date", "checked", "created_at", "updated_at"),
	RoutineLogs:     newColumnSet("id", "routine_id", "date", "completed", "checked", "created_at"),
	Meals:           newColumnSet("id", "family_id", "date", "meal_type", "recipe_title", "ingredients", "instructions", "created_at", "updated_at"),
	Lists:           newColumnSet("id", "family_id", "type", "title", "created_at", "updated_at"),
	ListItems:       newColumnSet("id", "list_id", "name", "quantity", "category", "checked", "position", "created_at", "updated_at"),
}

func columnsOf(collection string) (columnSet, error) {
	cols, ok := schemas[collection]
	if !ok {
		return columnSet{}, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return cols, nil
}

func checkField(collection, field string) error {
	cols, err := columnsOf(collection)
	if err != nil {
		return err
	}
	if !cols.has(field) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, collection, field)
	}
	return nil
}
