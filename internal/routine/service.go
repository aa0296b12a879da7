package routine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"family-ops/internal/entitlement"
	"family-ops/internal/shared"
	"family-ops/internal/store"
)

var ErrChildNotFound = errors.New("child not found")

// Authorizer checks that a user may manage a family's routines.
type Authorizer interface {
	RequireAdult(ctx context.Context, userID, familyID string) (entitlement.Member, error)
}

// Routine is a child's recurring checklist.
type Routine struct {
	ID          string   `json:"id"`
	FamilyID    string   `json:"familyId"`
	ChildID     string   `json:"childId"`
	Title       string   `json:"title"`
	Schedule    Schedule `json:"schedule"`
	StreakCount int      `json:"streakCount"`
	CreatedAt   string   `json:"createdAt"`
}

// TaskStatus is one visible task's state on a date.
type TaskStatus struct {
	Index   int    `json:"index"`
	Task    string `json:"task"`
	Checked bool   `json:"checked"`
}

// Service manages routines. Only owners and adults may change them.
type Service struct {
	gw     store.Gateway
	auth   Authorizer
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(gw store.Gateway, auth Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, auth: auth, logger: logger}
}

// Create adds a routine for a child with a zero streak.
func (s *Service) Create(ctx context.Context, userID, childID, title string, schedule Schedule) (Routine, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Routine{}, fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	familyID, err := s.childFamily(ctx, childID)
	if err != nil {
		return Routine{}, err
	}
	if _, err := s.auth.RequireAdult(ctx, userID, familyID); err != nil {
		return Routine{}, err
	}
	raw, err := schedule.encode()
	if err != nil {
		return Routine{}, err
	}
	rec, err := s.gw.Create(ctx, store.Routines, store.Record{
		"family_id": familyID, "child_id": childID, "title": title, "schedule": raw, "streak_count": 0,
	})
	if err != nil {
		return Routine{}, fmt.Errorf("failed to create routine: %w", err)
	}
	s.logger.Info("routine.create", "routine_id", rec.ID(), "child_id", childID, "tasks", len(schedule.Tasks))
	return toRoutine(rec), nil
}

// Update changes the title and/or schedule. Nil arguments are left as is.
func (s *Service) Update(ctx context.Context, userID, routineID string, title *string, schedule *Schedule) (Routine, error) {
	r, err := s.authorized(ctx, userID, routineID)
	if err != nil {
		return Routine{}, err
	}
	patch := store.Record{}
	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return Routine{}, fmt.Errorf("%w: title is required", ErrBadRequest)
		}
		patch["title"], r.Title = t, t
	}
	if schedule != nil {
		raw, err := schedule.encode()
		if err != nil {
			return Routine{}, err
		}
		patch["schedule"], r.Schedule = raw, *schedule
	}
	if len(patch) == 0 {
		return r, nil
	}
	if err := s.gw.Update(ctx, store.Routines, routineID, patch); err != nil {
		return Routine{}, fmt.Errorf("failed to update routine: %w", err)
	}
	return r, nil
}

// Remove deletes a routine and all of its logs.
func (s *Service) Remove(ctx context.Context, userID, routineID string) error {
	if _, err := s.authorized(ctx, userID, routineID); err != nil {
		return err
	}
	for _, c := range []string{store.RoutineTaskLogs, store.RoutineLogs} {
		if _, err := s.gw.DeleteMany(ctx, c, store.Filter{"routine_id": routineID}); err != nil {
			return fmt.Errorf("failed to delete %s: %w", c, err)
		}
	}
	if err := s.gw.Delete(ctx, store.Routines, routineID); err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	s.logger.Info("routine.remove", "routine_id", routineID)
	return nil
}

// Duplicate copies a routine's title and schedule with a fresh streak.
func (s *Service) Duplicate(ctx context.Context, routineID string) (Routine, error) {
	r, err := s.Get(ctx, routineID)
	if err != nil {
		return Routine{}, err
	}
	raw, err := r.Schedule.encode()
	if err != nil {
		return Routine{}, err
	}
	rec, err := s.gw.Create(ctx, store.Routines, store.Record{
		"family_id": r.FamilyID, "child_id": r.ChildID, "title": r.Title + " (Copy)", "schedule": raw, "streak_count": 0,
	})
	if err != nil {
		return Routine{}, fmt.Errorf("failed to duplicate routine: %w", err)
	}
	return toRoutine(rec), nil
}

// Get loads a routine.
func (s *Service) Get(ctx context.Context, routineID string) (Routine, error) {
	rec, err := store.Get(ctx, s.gw, store.Routines, routineID)
	if errors.Is(err, store.ErrNotFound) {
		return Routine{}, fmt.Errorf("%w: %s", ErrNotFound, routineID)
	}
	if err != nil {
		return Routine{}, fmt.Errorf("failed to load routine: %w", err)
	}
	return toRoutine(rec), nil
}

// ListByFamily returns the routines of the family's children, newest first.
func (s *Service) ListByFamily(ctx context.Context, familyID string) ([]Routine, error) {
	children, err := s.gw.List(ctx, store.Children, store.Query{Where: store.Filter{"family_id": familyID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	if len(children) == 0 {
		return nil, nil
	}
	ids := make(store.In, len(children))
	for i, c := range children {
		ids[i] = c.ID()
	}
	recs, err := s.gw.List(ctx, store.Routines, store.Query{
		Where:   store.Filter{"child_id": ids},
		OrderBy: []store.Order{store.Desc("created_at")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	out := make([]Routine, len(recs))
	for i, rec := range recs {
		out[i] = toRoutine(rec)
	}
	return out, nil
}

// TaskStates reports each visible task's state on date.
func (s *Service) TaskStates(ctx context.Context, routineID, date string) ([]TaskStatus, error) {
	if _, err := shared.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	r, err := s.Get(ctx, routineID)
	if err != nil {
		return nil, err
	}
	day, err := loadDay(ctx, s.gw, routineID, date)
	if err != nil {
		return nil, err
	}
	out := make([]TaskStatus, r.Schedule.VisibleCount())
	for i := range out {
		out[i] = TaskStatus{Index: i, Task: r.Schedule.Tasks[i], Checked: day[i].state == Checked}
	}
	return out, nil
}

// Family returns the family owning r. Older routines carry no family_id and
// belong to their child's family.
func (s *Service) Family(ctx context.Context, r Routine) (string, error) {
	if r.FamilyID != "" {
		return r.FamilyID, nil
	}
	return s.childFamily(ctx, r.ChildID)
}

func (s *Service) authorized(ctx context.Context, userID, routineID string) (Routine, error) {
	r, err := s.Get(ctx, routineID)
	if err != nil {
		return Routine{}, err
	}
	familyID, err := s.Family(ctx, r)
	if err != nil {
		return Routine{}, err
	}
	if _, err := s.auth.RequireAdult(ctx, userID, familyID); err != nil {
		return Routine{}, err
	}
	return r, nil
}

func (s *Service) childFamily(ctx context.Context, childID string) (string, error) {
	child, err := store.Get(ctx, s.gw, store.Children, childID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrChildNotFound, childID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load child: %w", err)
	}
	return store.AsString(child["family_id"]), nil
}

func toRoutine(rec store.Record) Routine {
	sched, _ := ParseSchedule(store.AsString(rec["schedule"]))
	streak, _ := store.AsInt(rec["streak_count"])
	return Routine{
		ID:          rec.ID(),
		FamilyID:    store.AsString(rec["family_id"]),
		ChildID:     store.AsString(rec["child_id"]),
		Title:       store.AsString(rec["title"]),
		Schedule:    sched,
		StreakCount: streak,
		CreatedAt:   store.AsString(rec["created_at"]),
	}
}
