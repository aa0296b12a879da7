package routine

import (
	"context"
	"fmt"

	"family-ops/internal/store"
)

// TaskState is what the store says about one task on one day.
type TaskState int

const (
	Absent TaskState = iota
	Unchecked
	Checked
)

func (s TaskState) String() string {
	switch s {
	case Checked:
		return "checked"
	case Unchecked:
		return "unchecked"
	}
	return "absent"
}

type taskLog struct {
	id    string
	state TaskState
}

// dayLogs indexes a routine's task logs for one date by task index.
type dayLogs map[int]taskLog

// loadDay reads every task log of the routine on date. When an index has
// several rows a checked one wins.
func loadDay(ctx context.Context, gw store.Gateway, routineID, date string) (dayLogs, error) {
	recs, err := gw.List(ctx, store.RoutineTaskLogs, store.Query{
		Where: store.Filter{"routine_id": routineID, "date": date},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load task logs: %w", err)
	}
	day := make(dayLogs, len(recs))
	for _, rec := range recs {
		idx, ok := store.AsInt(rec["task_index"])
		if !ok || idx < 0 {
			continue
		}
		st := Unchecked
		if store.Truthy(rec["checked"]) {
			st = Checked
		}
		if cur, seen := day[idx]; seen && cur.state >= st {
			continue
		}
		day[idx] = taskLog{id: rec.ID(), state: st}
	}
	return day, nil
}

func (d dayLogs) checkedVisible(visible int) int {
	n := 0
	for idx, l := range d {
		if idx < visible && l.state == Checked {
			n++
		}
	}
	return n
}
