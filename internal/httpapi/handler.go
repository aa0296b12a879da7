// Package httpapi exposes the household operations over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"family-ops/internal/content"
	"family-ops/internal/entitlement"
	"family-ops/internal/metrics"
	"family-ops/internal/planner"
	"family-ops/internal/routine"
	"family-ops/internal/shopping"

	"github.com/go-chi/chi/v5"
)

// Members checks family membership.
type Members interface {
	RequireMember(ctx context.Context, userID, familyID string) (entitlement.Member, error)
}

// Routines reads routines and their task states.
type Routines interface {
	Get(ctx context.Context, routineID string) (routine.Routine, error)
	Family(ctx context.Context, r routine.Routine) (string, error)
	ListByFamily(ctx context.Context, familyID string) ([]routine.Routine, error)
	TaskStates(ctx context.Context, routineID, date string) ([]routine.TaskStatus, error)
}

// WeekGenerator generates a week of meals.
type WeekGenerator interface {
	GenerateWeek(ctx context.Context, userID, familyID string, req planner.WeekRequest) (planner.WeekResult, error)
}

// MealImporter stores a recipe page as a meal.
type MealImporter interface {
	ImportMeal(ctx context.Context, familyID, date, mealType, url string) (planner.Meal, bool, error)
}

// PackingCreator builds packing lists from trips.
type PackingCreator interface {
	CreateFromTrip(ctx context.Context, userID, familyID string, trip content.Trip) (shopping.PackingResult, error)
}

// Lists manages list items.
type Lists interface {
	GetList(ctx context.Context, listID string) (shopping.List, error)
	Items(ctx context.Context, listID string) ([]shopping.Item, error)
	AddIngredients(ctx context.Context, listID string, additions []shopping.Addition) (shopping.AddResult, error)
	AddItem(ctx context.Context, listID, name, quantity, category string) (shopping.AddItemResult, error)
	Reorder(ctx context.Context, listID string, placements []shopping.Placement) (shopping.ReorderResult, error)
}

// Deps are the services behind the handlers.
type Deps struct {
	Members  Members
	Toggler  routine.Toggler
	Routines Routines
	Weeks    WeekGenerator
	Importer MealImporter
	Packing  PackingCreator
	Lists    Lists
	DataPath string
	// Ready backs /readyz; nil means always ready.
	Ready  func(context.Context) error
	Logger *slog.Logger
}

// Handler serves the API.
type Handler struct {
	Deps
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{Deps: deps}
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (h *Handler) toggleTask(w http.ResponseWriter, r *http.Request) {
	var req routine.ToggleRequest
	if !decode(r, &req) || req.RoutineID == "" || req.TaskIndex == nil || req.Date == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !h.canAccessRoutine(w, r, req.RoutineID) {
		return
	}
	res, err := h.Toggler.Toggle(r.Context(), req)
	if err != nil {
		h.fail(w, r, "routine.toggle.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		routine.ToggleResult
	}{true, res})
}

func (h *Handler) taskStates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "routineID")
	if !h.canAccessRoutine(w, r, id) {
		return
	}
	states, err := h.Routines.TaskStates(r.Context(), id, r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, "routine.tasks.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (h *Handler) listRoutines(w http.ResponseWriter, r *http.Request) {
	familyID, ok := h.member(w, r)
	if !ok {
		return
	}
	routines, err := h.Routines.ListByFamily(r.Context(), familyID)
	if err != nil {
		h.fail(w, r, "routine.list.failed", err)
		return
	}
	if routines == nil {
		routines = []routine.Routine{}
	}
	writeJSON(w, http.StatusOK, routines)
}

func (h *Handler) generateMealPlan(w http.ResponseWriter, r *http.Request) {
	var req planner.WeekRequest
	if r.ContentLength != 0 && !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	res, err := h.Weeks.GenerateWeek(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "familyID"), req)
	if err != nil {
		h.fail(w, r, "meals.generate_week.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) importMeal(w http.ResponseWriter, r *http.Request) {
	familyID, ok := h.member(w, r)
	if !ok {
		return
	}
	var req struct {
		Date     string `json:"date"`
		MealType string `json:"mealType"`
		URL      string `json:"url"`
	}
	if !decode(r, &req) || req.URL == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	meal, created, err := h.Importer.ImportMeal(r.Context(), familyID, req.Date, req.MealType, req.URL)
	if err != nil {
		h.fail(w, r, "meals.import.failed", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, meal)
}

func (h *Handler) generatePacking(w http.ResponseWriter, r *http.Request) {
	var trip content.Trip
	if r.ContentLength != 0 && !decode(r, &trip) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	res, err := h.Packing.CreateFromTrip(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "familyID"), trip)
	if err != nil {
		h.fail(w, r, "packing.create.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	listID, ok := h.listAccess(w, r)
	if !ok {
		return
	}
	items, err := h.Lists.Items(r.Context(), listID)
	if err != nil {
		h.fail(w, r, "lists.items.failed", err)
		return
	}
	if items == nil {
		items = []shopping.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) addIngredients(w http.ResponseWriter, r *http.Request) {
	listID, ok := h.listAccess(w, r)
	if !ok {
		return
	}
	var req struct {
		Items []shopping.Addition `json:"items"`
	}
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	res, err := h.Lists.AddIngredients(r.Context(), listID, req.Items)
	if err != nil {
		h.fail(w, r, "lists.add_ingredients.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	listID, ok := h.listAccess(w, r)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Quantity string `json:"quantity"`
		Category string `json:"category"`
	}
	if !decode(r, &req) || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	res, err := h.Lists.AddItem(r.Context(), listID, req.Name, req.Quantity, req.Category)
	if err != nil {
		h.fail(w, r, "lists.add_item.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	listID, ok := h.listAccess(w, r)
	if !ok {
		return
	}
	var req struct {
		Items []shopping.Placement `json:"items"`
	}
	if !decode(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	res, err := h.Lists.Reorder(r.Context(), listID, req.Items)
	if err != nil {
		h.fail(w, r, "lists.reorder.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, metrics.GetSysHealth(h.DataPath))
}

// member checks that the caller belongs to the {familyID} in the path.
func (h *Handler) member(w http.ResponseWriter, r *http.Request) (string, bool) {
	familyID := chi.URLParam(r, "familyID")
	if _, err := h.Members.RequireMember(r.Context(), UserFromContext(r.Context()), familyID); err != nil {
		writeDomainError(w, err)
		return "", false
	}
	return familyID, true
}

func (h *Handler) listAccess(w http.ResponseWriter, r *http.Request) (string, bool) {
	listID := chi.URLParam(r, "listID")
	list, err := h.Lists.GetList(r.Context(), listID)
	if err == nil {
		_, err = h.Members.RequireMember(r.Context(), UserFromContext(r.Context()), list.FamilyID)
	}
	if err != nil {
		writeDomainError(w, err)
		return "", false
	}
	return listID, true
}

func (h *Handler) canAccessRoutine(w http.ResponseWriter, r *http.Request, routineID string) bool {
	rt, err := h.Routines.Get(r.Context(), routineID)
	var familyID string
	if err == nil {
		familyID, err = h.Routines.Family(r.Context(), rt)
	}
	if err == nil {
		_, err = h.Members.RequireMember(r.Context(), UserFromContext(r.Context()), familyID)
	}
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, event string, err error) {
	if status, _ := mapDomainError(err); status == http.StatusInternalServerError {
		h.Logger.Error(event, "path", r.URL.Path, "user_id", UserFromContext(r.Context()), "err", err)
	}
	writeDomainError(w, err)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			h.Logger.Warn("http.not_ready", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
