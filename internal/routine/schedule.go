package routine

import (
	"encoding/json"
	"fmt"
)

// MaxVisibleTasks caps how many leading tasks count toward completion.
const MaxVisibleTasks = 4

// Schedule is the JSON stored in routines.schedule.
type Schedule struct {
	Type  string   `json:"type,omitempty"`
	Time  string   `json:"time,omitempty"`
	Days  []string `json:"days,omitempty"`
	Tasks []string `json:"tasks"`
}

// VisibleCount is min(MaxVisibleTasks, len(Tasks)).
func (s Schedule) VisibleCount() int {
	return min(MaxVisibleTasks, len(s.Tasks))
}

// ParseSchedule reads a stored schedule. An empty value has no tasks.
func ParseSchedule(raw string) (Schedule, error) {
	var s Schedule
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule: %w", err)
	}
	return s, nil
}

func (s Schedule) encode() (string, error) {
	if s.Tasks == nil {
		s.Tasks = []string{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode schedule: %w", err)
	}
	return string(b), nil
}
