package shopping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"family-ops/internal/content"
	"family-ops/internal/store"
)

// DefaultGroceryTitle names the list created when a family has none.
const DefaultGroceryTitle = "Grocery List"

// Service builds and merges list items.
type Service struct {
	repo   *Repository
	gw     store.Gateway
	logger *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(gw store.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: NewRepository(gw), gw: gw, logger: logger}
}

// Repository exposes the underlying repository for read paths.
func (s *Service) Repository() *Repository { return s.repo }

// CreateList creates an empty list.
func (s *Service) CreateList(ctx context.Context, familyID string, listType ListType, title string) (List, error) {
	return s.repo.CreateList(ctx, familyID, listType, title)
}

// CreateGeneratedList always creates a new list. Items sharing a NameKey
// are folded into the first one with their quantities joined by " + ".
// A failed item write is logged and skipped; the rest keep dense positions
// from 0. When no item could be written the list is removed again and the
// last write error is returned, so a failed run leaves nothing behind.
func (s *Service) CreateGeneratedList(ctx context.Context, familyID string, listType ListType, title string, items []NewItem) (List, int, error) {
	items = foldByName(items)
	list, err := s.repo.CreateList(ctx, familyID, listType, title)
	if err != nil {
		return List{}, 0, err
	}

	var lastErr error
	written := 0
	for _, item := range items {
		if _, err := s.repo.CreateItem(ctx, list.ID, item, written); err != nil {
			s.logger.Warn("lists.item_write_failed", "list_id", list.ID, "name", item.Name, "err", err)
			lastErr = err
			continue
		}
		written++
	}
	if written == 0 && lastErr != nil {
		if err := s.gw.Delete(ctx, store.Lists, list.ID); err != nil {
			s.logger.Error("lists.cleanup_failed", "list_id", list.ID, "err", err)
		}
		return List{}, 0, fmt.Errorf("failed to write list items: %w", lastErr)
	}
	return list, written, nil
}

// foldByName fills in blank names and quantities and merges entries whose
// names share a NameKey, keeping first-seen order and the first category.
func foldByName(items []NewItem) []NewItem {
	index := make(map[string]int, len(items))
	out := make([]NewItem, 0, len(items))
	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			item.Name = "Item"
		}
		item.Quantity = strings.TrimSpace(item.Quantity)
		if item.Quantity == "" {
			item.Quantity = "1"
		}
		key := NameKey(item.Name)
		if i, ok := index[key]; ok {
			out[i].Quantity += " + " + item.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}

// GroceryItems converts ingredients to list items.
func GroceryItems(ingredients []content.Ingredient) []NewItem {
	items := make([]NewItem, len(ingredients))
	for i, ing := range ingredients {
		items[i] = NewItem{Name: ing.Name, Quantity: ing.Qty, Category: string(ing.Category)}
	}
	return items
}

// PackingItems converts packing entries to list items.
func PackingItems(entries []content.PackingItem) []NewItem {
	items := make([]NewItem, len(entries))
	for i, e := range entries {
		items[i] = NewItem{Name: e.Name, Quantity: e.Qty, Category: string(e.Category)}
	}
	return items
}

// GetList loads a list.
func (s *Service) GetList(ctx context.Context, listID string) (List, error) {
	return s.repo.GetList(ctx, listID)
}

// LatestList returns the family's most recent list of the given type.
func (s *Service) LatestList(ctx context.Context, familyID string, listType ListType) (List, error) {
	lists, err := s.repo.ListsByFamily(ctx, familyID, listType, 1)
	if err != nil {
		return List{}, err
	}
	if len(lists) == 0 {
		return List{}, fmt.Errorf("%w: no %s list for family %s", ErrNotFound, listType, familyID)
	}
	return lists[0], nil
}

// ListsByFamily returns the family's lists, newest first.
func (s *Service) ListsByFamily(ctx context.Context, familyID string, listType ListType) ([]List, error) {
	return s.repo.ListsByFamily(ctx, familyID, listType, 0)
}

// Items returns a list's items in manual order.
func (s *Service) Items(ctx context.Context, listID string) ([]Item, error) {
	if _, err := s.repo.GetList(ctx, listID); err != nil {
		return nil, err
	}
	return s.repo.Items(ctx, listID)
}

// ToggleItem sets an item's checked flag.
func (s *Service) ToggleItem(ctx context.Context, itemID string, checked bool) error {
	return s.repo.UpdateItem(ctx, itemID, store.Record{"checked": checked})
}

// itemIndex is a list's items keyed by NameKey.
type itemIndex struct {
	byKey   map[string]*Item
	nextPos int
}

func (s *Service) index(ctx context.Context, listID string) (*itemIndex, error) {
	items, err := s.repo.Items(ctx, listID)
	if err != nil {
		return nil, err
	}
	idx := &itemIndex{byKey: make(map[string]*Item, len(items))}
	for i := range items {
		key := NameKey(items[i].Name)
		if _, dup := idx.byKey[key]; !dup {
			idx.byKey[key] = &items[i]
		}
		idx.nextPos = max(idx.nextPos, items[i].Position+1)
	}
	return idx, nil
}

// AddIngredients merges additions into a list. A name already on the list
// (compared by NameKey) has its quantity summed numerically and is
// unchecked again; anything else is appended after the last position.
func (s *Service) AddIngredients(ctx context.Context, listID string, additions []Addition) (AddResult, error) {
	if _, err := s.repo.GetList(ctx, listID); err != nil {
		return AddResult{}, err
	}
	idx, err := s.index(ctx, listID)
	if err != nil {
		return AddResult{}, err
	}

	res := AddResult{ListID: listID}
	for _, a := range additions {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		key := NameKey(name)
		if found, ok := idx.byKey[key]; ok {
			qty := MergeQuantityNumeric(found.Quantity, a.Qty)
			if err := s.repo.UpdateItem(ctx, found.ID, store.Record{"quantity": qty, "checked": false}); err != nil {
				return res, err
			}
			found.Quantity, found.Checked = qty, false
			res.MergedCount++
			continue
		}

		qty := strings.TrimSpace(a.Qty)
		if qty == "" {
			qty = "1"
		}
		item, err := s.repo.CreateItem(ctx, listID, NewItem{Name: name, Quantity: qty}, idx.nextPos)
		if err != nil {
			return res, err
		}
		idx.byKey[key] = &item
		idx.nextPos++
		res.AddedCount++
	}

	s.logger.Info("lists.add_ingredients", "list_id", listID, "added", res.AddedCount, "merged", res.MergedCount)
	return res, nil
}

// AddItem adds a single item, merging into an existing one with the same
// name.
func (s *Service) AddItem(ctx context.Context, listID, name, quantity, category string) (AddItemResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AddItemResult{}, fmt.Errorf("%w: item name required", ErrInvalidItem)
	}
	if _, err := s.repo.GetList(ctx, listID); err != nil {
		return AddItemResult{}, err
	}
	idx, err := s.index(ctx, listID)
	if err != nil {
		return AddItemResult{}, err
	}

	if found, ok := idx.byKey[NameKey(name)]; ok {
		qty := MergeQuantityNumeric(found.Quantity, quantity)
		if err := s.repo.UpdateItem(ctx, found.ID, store.Record{"quantity": qty, "checked": false}); err != nil {
			return AddItemResult{}, err
		}
		return AddItemResult{Merged: true, ID: found.ID, Quantity: qty, Message: fmt.Sprintf("Merged with existing (%s)", qty)}, nil
	}

	if strings.TrimSpace(quantity) == "" {
		quantity = "1"
	}
	item, err := s.repo.CreateItem(ctx, listID, NewItem{Name: name, Quantity: quantity, Category: category}, idx.nextPos)
	if err != nil {
		return AddItemResult{}, err
	}
	return AddItemResult{ID: item.ID, Quantity: item.Quantity, Message: "Item added"}, nil
}

// AddIngredientsFromMeal adds each ingredient of a meal to the family's
// latest grocery list, creating one when the family has none. Every
// ingredient counts as one unit.
func (s *Service) AddIngredientsFromMeal(ctx context.Context, familyID, mealID string) (AddResult, error) {
	meal, err := store.First(ctx, s.gw, store.Meals, store.Filter{"id": mealID, "family_id": familyID})
	if errors.Is(err, store.ErrNotFound) {
		return AddResult{}, fmt.Errorf("%w: meal %s", ErrNotFound, mealID)
	}
	if err != nil {
		return AddResult{}, fmt.Errorf("failed to load meal: %w", err)
	}

	list, err := s.LatestList(ctx, familyID, Grocery)
	if errors.Is(err, ErrNotFound) {
		list, err = s.repo.CreateList(ctx, familyID, Grocery, DefaultGroceryTitle)
	}
	if err != nil {
		return AddResult{}, err
	}

	names := ingredientNames(store.AsString(meal["ingredients"]))
	additions := make([]Addition, len(names))
	for i, n := range names {
		additions[i] = Addition{Name: n}
	}
	return s.AddIngredients(ctx, list.ID, additions)
}

// ingredientNames reads a stored ingredients column, which holds either
// structured ingredients or bare names. Unreadable content yields nothing.
func ingredientNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var structured []content.Ingredient
	if err := json.Unmarshal([]byte(raw), &structured); err == nil {
		names := make([]string, 0, len(structured))
		for _, ing := range structured {
			names = append(names, ing.Name)
		}
		return names
	}
	var plain []string
	if err := json.Unmarshal([]byte(raw), &plain); err == nil {
		return plain
	}
	return nil
}
