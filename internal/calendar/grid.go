package calendar

import (
	"time"

	"github.com/berrylist/backend/internal/storage/models"
)

// DayCell is one cell of the month grid.
type DayCell struct {
	Date    string         `json:"date"` // YYYY-MM-DD
	Day     int            `json:"day"`
	InMonth bool           `json:"in_month"`
	Events  []models.Event `json:"events"`
}

// MonthGrid lays out the given month as a sequence of day cells whose length
// is always a multiple of 7. Leading cells spill over from the previous
// month and trailing cells from the next, so the first and last week rows
// are complete. Events are attached to cells by exact date match.
func MonthGrid(year int, month time.Month, weekStart WeekStart, events []models.Event) []DayCell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	daysInPrevMonth := first.AddDate(0, 0, -1).Day()

	leading := weekStart.offset(first.Weekday())
	totalCells := ((leading + daysInMonth + 6) / 7) * 7

	byDate := eventsByDate(events)
	cells := make([]DayCell, 0, totalCells)

	prev := first.AddDate(0, -1, 0)
	for i := leading - 1; i >= 0; i-- {
		day := daysInPrevMonth - i
		cells = append(cells, newCell(prev.Year(), prev.Month(), day, false, byDate))
	}

	for day := 1; day <= daysInMonth; day++ {
		cells = append(cells, newCell(year, month, day, true, byDate))
	}

	next := first.AddDate(0, 1, 0)
	for day := 1; len(cells) < totalCells; day++ {
		cells = append(cells, newCell(next.Year(), next.Month(), day, false, byDate))
	}

	return cells
}

func newCell(year int, month time.Month, day int, inMonth bool, byDate map[string][]models.Event) DayCell {
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(models.DateLayout)
	return DayCell{
		Date:    date,
		Day:     day,
		InMonth: inMonth,
		Events:  byDate[date],
	}
}

func eventsByDate(events []models.Event) map[string][]models.Event {
	byDate := make(map[string][]models.Event, len(events))
	for _, e := range events {
		byDate[e.Date] = append(byDate[e.Date], e)
	}
	return byDate
}
