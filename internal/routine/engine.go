// Package routine tracks per-task completion of children's routines and the
// streak of fully completed days derived from it.
package routine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"family-ops/internal/shared"
	"family-ops/internal/store"
)

var (
	ErrBadRequest     = errors.New("bad request")
	ErrNotFound       = errors.New("routine not found")
	ErrToggleInFlight = errors.New("toggle already in flight")
	ErrUnauthorized   = errors.New("toggle not authorized")
)

// UncheckMode selects how an unchecked task is written.
type UncheckMode int

const (
	// RemoveRow deletes the task log.
	RemoveRow UncheckMode = iota
	// ClearFlag keeps the task log with checked=0.
	ClearFlag
)

func (m UncheckMode) String() string {
	if m == ClearFlag {
		return "clear_flag"
	}
	return "remove_row"
}

// ToggleRequest checks or unchecks one task of a routine on a date.
type ToggleRequest struct {
	RoutineID string `json:"routineId"`
	TaskIndex *int   `json:"taskIndex"`
	Date      string `json:"date"`
	Checked   bool   `json:"checked"`
}

// ToggleResult reports the day's completion after a toggle. Total is the
// number of visible tasks.
type ToggleResult struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Streak    int `json:"streak"`
}

// Toggler applies a ToggleRequest.
type Toggler interface {
	Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error)
}

// Engine applies toggles directly against the record store.
type Engine struct {
	gw     store.Gateway
	mode   UncheckMode
	logger *slog.Logger
}

// NewEngine creates an Engine writing unchecks with mode.
func NewEngine(gw store.Gateway, mode UncheckMode, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gw: gw, mode: mode, logger: logger}
}

// Toggle sets the task's state for the date, then moves the streak by one
// when the day's completion flips. Re-applying the same request changes
// nothing.
func (e *Engine) Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error) {
	if req.RoutineID == "" || req.TaskIndex == nil || req.Date == "" {
		return ToggleResult{}, fmt.Errorf("%w: missing required fields", ErrBadRequest)
	}
	if _, err := shared.ParseDate(req.Date); err != nil {
		return ToggleResult{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	rec, err := store.Get(ctx, e.gw, store.Routines, req.RoutineID)
	if errors.Is(err, store.ErrNotFound) {
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrNotFound, req.RoutineID)
	}
	if err != nil {
		return ToggleResult{}, fmt.Errorf("failed to load routine: %w", err)
	}
	sched, err := ParseSchedule(store.AsString(rec["schedule"]))
	if err != nil {
		return ToggleResult{}, err
	}
	idx := *req.TaskIndex
	if idx < 0 || idx >= len(sched.Tasks) {
		return ToggleResult{}, fmt.Errorf("%w: task index %d out of range [0,%d)", ErrBadRequest, idx, len(sched.Tasks))
	}
	visible := sched.VisibleCount()

	before, err := loadDay(ctx, e.gw, req.RoutineID, req.Date)
	if err != nil {
		return ToggleResult{}, err
	}
	wasComplete := isComplete(before.checkedVisible(visible), visible)

	if err := e.apply(ctx, req, before[idx]); err != nil {
		return ToggleResult{}, err
	}

	after, err := loadDay(ctx, e.gw, req.RoutineID, req.Date)
	if err != nil {
		return ToggleResult{}, err
	}
	completed := after.checkedVisible(visible)
	nowComplete := isComplete(completed, visible)

	prev, _ := store.AsInt(rec["streak_count"])
	prev = max(prev, 0)
	streak := prev
	switch {
	case !wasComplete && nowComplete:
		streak = prev + 1
		if err := e.recordCompletion(ctx, req.RoutineID, req.Date); err != nil {
			return ToggleResult{}, err
		}
	case wasComplete && !nowComplete:
		streak = max(0, prev-1)
		if _, err := e.gw.DeleteMany(ctx, store.RoutineLogs, store.Filter{
			"routine_id": req.RoutineID, "date": req.Date,
		}); err != nil {
			return ToggleResult{}, fmt.Errorf("failed to clear completion: %w", err)
		}
	}
	if streak != prev {
		if err := e.gw.Update(ctx, store.Routines, req.RoutineID, store.Record{"streak_count": streak}); err != nil {
			return ToggleResult{}, fmt.Errorf("failed to save streak: %w", err)
		}
	}

	e.logger.Debug("routine.toggle",
		"routine_id", req.RoutineID,
		"task_index", idx,
		"date", req.Date,
		"checked", req.Checked,
		"mode", e.mode,
		"completed", completed,
		"total", visible,
		"streak", streak,
	)
	return ToggleResult{Completed: completed, Total: visible, Streak: streak}, nil
}

func (e *Engine) apply(ctx context.Context, req ToggleRequest, cur taskLog) error {
	idx := *req.TaskIndex
	switch {
	case req.Checked && cur.state == Checked:
		return nil
	case req.Checked && cur.state == Unchecked:
		return e.setChecked(ctx, cur.id, true)
	case req.Checked:
		_, err := e.gw.Create(ctx, store.RoutineTaskLogs, store.Record{
			"routine_id": req.RoutineID, "task_index": idx, "date": req.Date, "checked": true,
		})
		if err != nil {
			return fmt.Errorf("failed to check task %d: %w", idx, err)
		}
		return nil
	case cur.state == Absent:
		return nil
	case e.mode == RemoveRow:
		if _, err := e.gw.DeleteMany(ctx, store.RoutineTaskLogs, store.Filter{
			"routine_id": req.RoutineID, "task_index": idx, "date": req.Date,
		}); err != nil {
			return fmt.Errorf("failed to uncheck task %d: %w", idx, err)
		}
		return nil
	case cur.state == Checked:
		return e.setChecked(ctx, cur.id, false)
	}
	return nil
}

func (e *Engine) setChecked(ctx context.Context, id string, checked bool) error {
	if err := e.gw.Update(ctx, store.RoutineTaskLogs, id, store.Record{"checked": checked}); err != nil {
		return fmt.Errorf("failed to update task log %s: %w", id, err)
	}
	return nil
}

func (e *Engine) recordCompletion(ctx context.Context, routineID, date string) error {
	recs, err := e.gw.List(ctx, store.RoutineLogs, store.Query{Where: store.Filter{"routine_id": routineID, "date": date}})
	if err != nil {
		return fmt.Errorf("failed to look up completion: %w", err)
	}
	for _, rec := range recs {
		if !isLegacyTaskLog(rec.ID()) && store.Truthy(rec["completed"]) {
			return nil
		}
	}
	if _, err := e.gw.Create(ctx, store.RoutineLogs, store.Record{"routine_id": routineID, "date": date, "completed": 1}); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

func isComplete(checked, visible int) bool {
	return visible > 0 && checked == visible
}
