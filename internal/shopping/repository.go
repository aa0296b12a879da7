package shopping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"family-ops/internal/store"
)

// Repository maps lists and list items onto the record store.
type Repository struct {
	gw store.Gateway
}

// NewRepository creates a new list repository.
func NewRepository(gw store.Gateway) *Repository {
	return &Repository{gw: gw}
}

// CreateList inserts a new empty list.
func (r *Repository) CreateList(ctx context.Context, familyID string, listType ListType, title string) (List, error) {
	rec, err := r.gw.Create(ctx, store.Lists, store.Record{
		"family_id": familyID,
		"type":      string(listType),
		"title":     title,
	})
	if err != nil {
		return List{}, fmt.Errorf("failed to create list: %w", err)
	}
	return toList(rec), nil
}

// GetList loads a list by id.
func (r *Repository) GetList(ctx context.Context, listID string) (List, error) {
	rec, err := store.Get(ctx, r.gw, store.Lists, listID)
	if errors.Is(err, store.ErrNotFound) {
		return List{}, fmt.Errorf("%w: list %s", ErrNotFound, listID)
	}
	if err != nil {
		return List{}, fmt.Errorf("failed to get list: %w", err)
	}
	return toList(rec), nil
}

// ListsByFamily returns a family's lists, newest first. An empty listType
// returns every type.
func (r *Repository) ListsByFamily(ctx context.Context, familyID string, listType ListType, limit int) ([]List, error) {
	where := store.Filter{"family_id": familyID}
	if listType != "" {
		where["type"] = string(listType)
	}
	recs, err := r.gw.List(ctx, store.Lists, store.Query{
		Where:   where,
		OrderBy: []store.Order{store.Desc("created_at")},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list lists for family %s: %w", familyID, err)
	}
	lists := make([]List, len(recs))
	for i, rec := range recs {
		lists[i] = toList(rec)
	}
	return lists, nil
}

// CreateItem inserts one item.
func (r *Repository) CreateItem(ctx context.Context, listID string, item NewItem, position int) (Item, error) {
	rec := store.Record{
		"list_id":  listID,
		"name":     item.Name,
		"quantity": item.Quantity,
		"checked":  false,
		"position": position,
	}
	if item.Category != "" {
		rec["category"] = item.Category
	}
	created, err := r.gw.Create(ctx, store.ListItems, rec)
	if err != nil {
		return Item{}, fmt.Errorf("failed to create item %q: %w", item.Name, err)
	}
	return toItem(created), nil
}

// GetItem loads an item by id.
func (r *Repository) GetItem(ctx context.Context, itemID string) (Item, error) {
	rec, err := store.Get(ctx, r.gw, store.ListItems, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return Item{}, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return toItem(rec), nil
}

// Items returns a list's items ordered by position.
func (r *Repository) Items(ctx context.Context, listID string) ([]Item, error) {
	recs, err := r.gw.List(ctx, store.ListItems, store.Query{
		Where:   store.Filter{"list_id": listID},
		OrderBy: []store.Order{store.Asc("position")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items of %s: %w", listID, err)
	}
	items := make([]Item, len(recs))
	for i, rec := range recs {
		items[i] = toItem(rec)
	}
	return items, nil
}

// UpdateItem patches an item.
func (r *Repository) UpdateItem(ctx context.Context, itemID string, patch store.Record) error {
	err := r.gw.Update(ctx, store.ListItems, itemID, patch)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", itemID, err)
	}
	return nil
}

func toList(rec store.Record) List {
	created, _ := time.Parse(store.TimestampLayout, store.AsString(rec["created_at"]))
	return List{
		ID:        rec.ID(),
		FamilyID:  store.AsString(rec["family_id"]),
		Type:      ListType(store.AsString(rec["type"])),
		Title:     store.AsString(rec["title"]),
		CreatedAt: created,
	}
}

func toItem(rec store.Record) Item {
	pos, _ := store.AsInt(rec["position"])
	return Item{
		ID:       rec.ID(),
		ListID:   store.AsString(rec["list_id"]),
		Name:     store.AsString(rec["name"]),
		Quantity: store.AsString(rec["quantity"]),
		Category: store.AsString(rec["category"]),
		Checked:  store.Truthy(rec["checked"]),
		Position: pos,
	}
}
