// Package calendar computes month grids and day-detail schedules from the
// event set. It is pure: no I/O, and identical inputs produce identical
// output.
package calendar

import "time"

// WeekStart selects which weekday begins the calendar row.
type WeekStart string

const (
	WeekStartSunday WeekStart = "sunday"
	WeekStartMonday WeekStart = "monday"
)

// ParseWeekStart maps a stored preference string to a WeekStart, defaulting
// to Monday for anything unrecognized (the application default).
func ParseWeekStart(s string) WeekStart {
	if s == string(WeekStartSunday) {
		return WeekStartSunday
	}
	return WeekStartMonday
}

// offset returns the weekday index rotation for this week start:
// with Sunday start, Sunday is column 0; with Monday start, Monday is.
func (w WeekStart) offset(d time.Weekday) int {
	if w == WeekStartMonday {
		return (int(d) + 6) % 7
	}
	return int(d)
}

// Headers returns the seven weekday names in display order.
func (w WeekStart) Headers() []string {
	names := []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	if w == WeekStartMonday {
		return append(names[1:7:7], names[0])
	}
	return names
}
