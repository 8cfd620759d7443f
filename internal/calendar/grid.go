package calendar

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"apptboard/internal/model"
)

const maxGridDays = 42

// Day is one cell of the calendar grid.
type Day struct {
	Date           time.Time `json:"date"`
	Label          string    `json:"label"`
	AppointmentIDs []int64   `json:"appointment_ids"`
}

// ParseWeekStart maps "sunday" to time.Sunday and anything else to
// time.Monday.
func ParseWeekStart(s string) time.Weekday {
	if s == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Grid lays out days consecutive days starting at the week start on or
// before anchor (in anchor's location) and buckets appointments by the
// local date of their start time. Within a day, input order is kept.
func Grid(anchor time.Time, days int, weekStart time.Weekday, appts []model.Appointment) ([]Day, error) {
	if days <= 0 {
		return nil, errors.New("calendar: days must be positive")
	}
	if days > maxGridDays {
		days = maxGridDays
	}

	loc := anchor.Location()
	start := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, loc)
	offset := (int(start.Weekday()) - int(weekStart) + 7) % 7
	start = start.AddDate(0, 0, -offset)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: start,
		Count:   days,
	})
	if err != nil {
		return nil, err
	}
	dates := r.All()

	index := make(map[string]int, len(dates))
	out := make([]Day, 0, len(dates))
	for i, d := range dates {
		key := d.Format("2006-01-02")
		index[key] = i
		out = append(out, Day{
			Date:           d,
			Label:          d.Format("Mon Jan 2"),
			AppointmentIDs: []int64{},
		})
	}

	for _, a := range appts {
		key := a.Start.In(loc).Format("2006-01-02")
		if i, ok := index[key]; ok {
			out[i].AppointmentIDs = append(out[i].AppointmentIDs, a.ID)
		}
	}
	return out, nil
}
