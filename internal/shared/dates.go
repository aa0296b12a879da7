package shared

import (
	"fmt"
	"time"
	_ "time/tzdata" // reference zone must resolve in minimal containers
)

// DateLayout is the calendar-day format used for every persisted date.
const DateLayout = "2006-01-02"

// DefaultTimezone is the reference zone used to decide what "today" is.
const DefaultTimezone = "America/New_York"

// LoadLocation resolves a zone name, defaulting to DefaultTimezone when empty.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// TodayISO returns the calendar day of now in loc.
func TodayISO(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// AddDays shifts a calendar day by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// NormalizeWeekStart moves a calendar day back to the Monday of its week.
func NormalizeWeekStart(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	sinceMonday := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -sinceMonday).Format(DateLayout), nil
}

// WeekDates returns the seven days Monday..Sunday of the week containing date.
func WeekDates(date string) ([]string, error) {
	monday, err := NormalizeWeekStart(date)
	if err != nil {
		return nil, err
	}
	start, _ := ParseDate(monday)
	dates := make([]string, 7)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates, nil
}

// DaysBetween returns end-start in whole days.
func DaysBetween(start, end string) (int, error) {
	s, err := ParseDate(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return 0, err
	}
	return int(e.Sub(s).Hours() / 24), nil
}

// ShortDay renders a day as "Jan 2" for list titles.
func ShortDay(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2")
}
