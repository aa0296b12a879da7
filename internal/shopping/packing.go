package shopping

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"family-ops/internal/content"
	"family-ops/internal/fallback"
	"family-ops/internal/generation"
	"family-ops/internal/shared"
)

// PackingGenerator produces packing list content.
type PackingGenerator interface {
	PackingList(ctx context.Context, req generation.PackingRequest) (generation.PackingOutcome, error)
}

// PackingResult describes a created packing list.
type PackingResult struct {
	ListID       string            `json:"listId"`
	Title        string            `json:"title"`
	ItemsCreated int               `json:"itemsCreated"`
	Source       generation.Source `json:"source"`
	// Degraded is set when the list had to be rebuilt from the basic defaults.
	Degraded bool `json:"degraded,omitempty"`
}

// PackingPlanner turns trips into packing lists.
type PackingPlanner struct {
	gen    PackingGenerator
	svc    *Service
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewPackingPlanner creates a PackingPlanner. loc is the reference zone used
// to date untitled lists.
func NewPackingPlanner(gen PackingGenerator, svc *Service, loc *time.Location, logger *slog.Logger) *PackingPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &PackingPlanner{gen: gen, svc: svc, logger: logger, loc: loc, now: time.Now}
}

// CreateFromTrip generates a packing list for the trip and stores it as a new
// list. If storing fails, a basic packing list is created instead so the
// caller still gets a list. Only entitlement failures and a failure of that
// last resort are returned.
func (p *PackingPlanner) CreateFromTrip(ctx context.Context, userID, familyID string, trip content.Trip) (PackingResult, error) {
	destination := strings.TrimSpace(trip.Destination)
	title := strings.TrimSpace(trip.Title)
	if title == "" {
		title = "Packing List"
		if destination != "" {
			title = "Packing • " + destination
		}
	}

	out, err := p.gen.PackingList(ctx, generation.PackingRequest{UserID: userID, FamilyID: familyID, Trip: trip})
	if err != nil {
		return PackingResult{}, err
	}

	list, n, err := p.svc.CreateGeneratedList(ctx, familyID, Packing, title, PackingItems(out.Content.Items))
	if err == nil {
		p.logger.Info("packing.created", "family_id", familyID, "list_id", list.ID, "items", n, "source", out.Source)
		return PackingResult{ListID: list.ID, Title: title, ItemsCreated: n, Source: out.Source}, nil
	}

	p.logger.Error("packing.fatal", "family_id", familyID, "err", err)
	fallbackTitle := "Packing List • " + shared.ShortDay(shared.TodayISO(p.now(), p.loc))
	if destination != "" {
		fallbackTitle = "Packing • " + destination
	}
	basic, n, berr := p.CreateBasic(ctx, familyID, fallbackTitle, nil)
	if berr != nil {
		return PackingResult{}, fmt.Errorf("failed to create packing list: %w", berr)
	}
	return PackingResult{ListID: basic.ID, Title: fallbackTitle, ItemsCreated: n, Source: generation.SourceFallback, Degraded: true}, nil
}

// CreateBasic creates a packing list from plain names, or from the default
// basic items when names is empty. Every item gets quantity 1 and category
// Misc.
func (p *PackingPlanner) CreateBasic(ctx context.Context, familyID, title string, names []string) (List, int, error) {
	if len(names) == 0 {
		names = fallback.BasicPackingItems()
	}
	items := make([]NewItem, len(names))
	for i, n := range names {
		items[i] = NewItem{Name: n, Quantity: "1", Category: string(content.Misc)}
	}
	return p.svc.CreateGeneratedList(ctx, familyID, Packing, title, items)
}
