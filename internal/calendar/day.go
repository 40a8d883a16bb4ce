package calendar

import (
	"github.com/berrylist/backend/internal/storage/models"
)

// HourBucket holds the timed events starting within one hour of the day.
type HourBucket struct {
	Hour   int            `json:"hour"`
	Events []models.Event `json:"events"`
}

// DaySchedule is the day-detail view: 24 hour buckets plus the events with
// no usable clock time.
type DaySchedule struct {
	Date   string         `json:"date"`
	AllDay []models.Event `json:"all_day"`
	Hours  []HourBucket   `json:"hours"`
}

// DayBuckets partitions the events falling on the given date into their
// hour-of-day slots. Events without a time, with the "00:00" sentinel, or
// with an unparseable time land in the all-day bucket.
func DayBuckets(date string, events []models.Event) DaySchedule {
	schedule := DaySchedule{
		Date:  date,
		Hours: make([]HourBucket, 24),
	}
	for h := range schedule.Hours {
		schedule.Hours[h].Hour = h
	}

	for _, e := range events {
		if e.Date != date {
			continue
		}
		if h := e.Hour(); h >= 0 {
			schedule.Hours[h].Events = append(schedule.Hours[h].Events, e)
		} else {
			schedule.AllDay = append(schedule.AllDay, e)
		}
	}

	return schedule
}
