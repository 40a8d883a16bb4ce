package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrylist/backend/internal/storage/models"
)

func TestMonthGridAlwaysMultipleOfSeven(t *testing.T) {
	for year := 2024; year <= 2027; year++ {
		for month := time.January; month <= time.December; month++ {
			for _, ws := range []WeekStart{WeekStartMonday, WeekStartSunday} {
				cells := MonthGrid(year, month, ws, nil)
				assert.Zero(t, len(cells)%7, "%d-%d %s: %d cells", year, month, ws, len(cells))
			}
		}
	}
}

func TestMonthGridLeadingCells(t *testing.T) {
	// March 2026 starts on a Sunday
	cells := MonthGrid(2026, time.March, WeekStartMonday, nil)
	// Monday start: six spill-over days from February before March 1
	require.Len(t, cells, 42)
	assert.Equal(t, "2026-02-23", cells[0].Date)
	assert.False(t, cells[0].InMonth)
	assert.Equal(t, "2026-03-01", cells[6].Date)
	assert.True(t, cells[6].InMonth)

	// Sunday start: March 1 lands in the first column, no spill-over
	cells = MonthGrid(2026, time.March, WeekStartSunday, nil)
	require.Len(t, cells, 35)
	assert.Equal(t, "2026-03-01", cells[0].Date)
	assert.True(t, cells[0].InMonth)
}

func TestMonthGridTrailingCells(t *testing.T) {
	// April 2026 ends on a Thursday; trailing cells come from May
	cells := MonthGrid(2026, time.April, WeekStartMonday, nil)
	require.Len(t, cells, 35)
	last := cells[len(cells)-1]
	assert.Equal(t, "2026-05-03", last.Date)
	assert.False(t, last.InMonth)
}

func TestMonthGridFebruary(t *testing.T) {
	// 2026 is a common year
	cells := MonthGrid(2026, time.February, WeekStartMonday, nil)
	inMonth := 0
	for _, c := range cells {
		if c.InMonth {
			inMonth++
		}
	}
	assert.Equal(t, 28, inMonth)

	// 2024 is a leap year
	cells = MonthGrid(2024, time.February, WeekStartMonday, nil)
	inMonth = 0
	for _, c := range cells {
		if c.InMonth {
			inMonth++
		}
	}
	assert.Equal(t, 29, inMonth)
}

func TestMonthGridYearBoundary(t *testing.T) {
	// January 2026 starts on a Thursday; leading cells come from December 2025
	cells := MonthGrid(2026, time.January, WeekStartMonday, nil)
	assert.Equal(t, "2025-12-29", cells[0].Date)
	assert.False(t, cells[0].InMonth)

	// December 2025 ends on a Wednesday; trailing cells come from January 2026
	cells = MonthGrid(2025, time.December, WeekStartMonday, nil)
	last := cells[len(cells)-1]
	assert.Equal(t, "2026-01-04", last.Date)
	assert.False(t, last.InMonth)
}

func TestMonthGridAttachesEvents(t *testing.T) {
	events := []models.Event{
		{ID: "a", Title: "Dentist", Date: "2026-03-10", Time: "14:00"},
		{ID: "b", Title: "Gym", Date: "2026-03-10", Time: "18:00"},
		{ID: "c", Title: "Elsewhere", Date: "2026-04-10"},
	}

	cells := MonthGrid(2026, time.March, WeekStartMonday, events)
	var target DayCell
	for _, c := range cells {
		if c.Date == "2026-03-10" {
			target = c
			break
		}
	}
	require.Len(t, target.Events, 2)
	assert.Equal(t, "a", target.Events[0].ID)
	assert.Equal(t, "b", target.Events[1].ID)
}

func TestParseWeekStart(t *testing.T) {
	assert.Equal(t, WeekStartSunday, ParseWeekStart("sunday"))
	assert.Equal(t, WeekStartMonday, ParseWeekStart("monday"))
	assert.Equal(t, WeekStartMonday, ParseWeekStart(""))
	assert.Equal(t, WeekStartMonday, ParseWeekStart("saturday"))
}

func TestHeaders(t *testing.T) {
	assert.Equal(t,
		[]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
		WeekStartMonday.Headers())
	assert.Equal(t,
		[]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		WeekStartSunday.Headers())
}

func TestDayBuckets(t *testing.T) {
	events := []models.Event{
		{ID: "a", Title: "Standup", Date: "2026-03-10", Time: "09:30"},
		{ID: "b", Title: "Review", Date: "2026-03-10", Time: "09:45"},
		{ID: "c", Title: "Holiday", Date: "2026-03-10", Time: ""},
		{ID: "d", Title: "Midnight sentinel", Date: "2026-03-10", Time: "00:00"},
		{ID: "e", Title: "Other day", Date: "2026-03-11", Time: "09:00"},
	}

	schedule := DayBuckets("2026-03-10", events)

	require.Len(t, schedule.Hours, 24)
	assert.Len(t, schedule.Hours[9].Events, 2)
	assert.Empty(t, schedule.Hours[0].Events, "00:00 is the all-day sentinel, not a midnight slot")
	assert.Len(t, schedule.AllDay, 2)

	for _, b := range schedule.Hours {
		for _, e := range b.Events {
			assert.Equal(t, "2026-03-10", e.Date)
		}
	}
}
