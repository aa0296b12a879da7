package shopping

import (
	"context"

	"family-ops/internal/store"
)

// Reorder applies each placement on its own. Placements for items that are
// not on the list, or whose write fails, are counted but not rolled back;
// the caller re-reads the list to resynchronize. Density of the resulting
// positions is the caller's responsibility.
func (s *Service) Reorder(ctx context.Context, listID string, placements []Placement) (ReorderResult, error) {
	items, err := s.Items(ctx, listID)
	if err != nil {
		return ReorderResult{}, err
	}
	onList := make(map[string]bool, len(items))
	for _, it := range items {
		onList[it.ID] = true
	}

	res := ReorderResult{Total: len(placements)}
	for _, p := range placements {
		if !onList[p.ID] {
			s.logger.Warn("lists.reorder.foreign_item", "list_id", listID, "item_id", p.ID)
			continue
		}
		if err := s.repo.UpdateItem(ctx, p.ID, store.Record{"position": p.Position}); err != nil {
			s.logger.Warn("lists.reorder.update_failed", "list_id", listID, "item_id", p.ID, "err", err)
			continue
		}
		res.Updated++
	}
	return res, nil
}

// ReorderIDs places the given items at their slice index.
func (s *Service) ReorderIDs(ctx context.Context, listID string, ids []string) (ReorderResult, error) {
	placements := make([]Placement, len(ids))
	for i, id := range ids {
		placements[i] = Placement{ID: id, Position: i}
	}
	return s.Reorder(ctx, listID, placements)
}
