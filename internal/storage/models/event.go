// Package models contains the domain models for the application.
package models

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar-date format used throughout the application.
// Dates are plain calendar days with no timezone attached.
const DateLayout = "2006-01-02"

// TimeLayout is the clock-time format for timed events.
const TimeLayout = "15:04"

// Event type constants. EventTypeOther is the catch-all default.
const (
	EventTypeWork     = "work"
	EventTypeStudy    = "study"
	EventTypeLeisure  = "leisure"
	EventTypeHealth   = "health"
	EventTypePersonal = "personal"
	EventTypeOther    = "other"
)

// Event represents a user-created calendar entry.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`           // YYYY-MM-DD
	Time        string `json:"time,omitempty"` // HH:MM, empty or "00:00" means all-day
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color,omitempty"`
	Completed   bool   `json:"completed"`
	UpdatedAt   string `json:"updatedAt,omitempty"` // RFC3339, set on every mutation
}

// AllDay reports whether the event has no usable clock time.
// The legacy data uses both "" and "00:00" as the all-day sentinel.
func (e Event) AllDay() bool {
	return e.Time == "" || e.Time == "00:00"
}

// Hour returns the hour-of-day slot for a timed event, or -1 for all-day
// events and unparseable times.
func (e Event) Hour() int {
	if e.AllDay() {
		return -1
	}
	t, err := time.Parse(TimeLayout, e.Time)
	if err != nil {
		return -1
	}
	return t.Hour()
}

// UpdatedTime parses the event's updatedAt stamp. Events without a stamp
// report the zero time, which orders them before anything with a timestamp.
func (e Event) UpdatedTime() time.Time {
	if e.UpdatedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, e.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Stamp sets updatedAt to the given instant.
func (e *Event) Stamp(now time.Time) {
	e.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// Validate checks the invariants every stored event must satisfy.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("event title is required")
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return fmt.Errorf("invalid event date %q: %w", e.Date, err)
	}
	if !e.AllDay() {
		if _, err := time.Parse(TimeLayout, e.Time); err != nil {
			return fmt.Errorf("invalid event time %q: %w", e.Time, err)
		}
	}
	return nil
}

// NormalizeType maps unknown categories to the catch-all type.
func NormalizeType(t string) string {
	switch t {
	case EventTypeWork, EventTypeStudy, EventTypeLeisure, EventTypeHealth, EventTypePersonal:
		return t
	default:
		return EventTypeOther
	}
}

// SortEvents orders events by date ascending for display. Ties are broken by
// time then id so that repeated loads and merges produce identical output.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].ID < events[j].ID
	})
}
