package calendar

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptboard/internal/annotate"
	"apptboard/internal/model"
)

func appt(id int64, start time.Time) model.Appointment {
	return model.Appointment{
		ID:       id,
		Start:    start,
		End:      start.Add(30 * time.Minute),
		Customer: model.Customer{Account: model.Account{FirstName: "Juan", LastName: "Cruz"}},
		Service:  model.Service{Name: "Wash", Duration: 30},
		Vehicle:  model.Vehicle{Type: "Sedan", Model: "Civic"},
		Bay:      model.Bay{Label: "A1"},
		Status:   model.Status{Label: "Pending"},
	}
}

func TestExport(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	appts := []model.Appointment{appt(7, start), appt(8, start.Add(time.Hour))}
	set := annotate.SetStrikeout(annotate.NewSet(nil), 8, true)

	out := Export(appts, set, ExportOptions{UIDDomain: "bay.test", Now: start})
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "PRODID:-//apptboard//EN")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	assert.Equal(t, "appointment-7@bay.test", events[0].GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "Wash (30 min)", events[0].GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Bay A1", events[0].GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Nil(t, events[0].GetProperty(PropertyStruck))
	assert.Equal(t, "CONFIRMED", events[0].GetProperty(ical.ComponentPropertyStatus).Value)

	got, err := events[1].GetStartAt()
	require.NoError(t, err)
	assert.True(t, got.Equal(start.Add(time.Hour)))
	struck := events[1].GetProperty(PropertyStruck)
	require.NotNil(t, struck)
	assert.Equal(t, "TRUE", struck.Value)
	assert.Equal(t, "CANCELLED", events[1].GetProperty(ical.ComponentPropertyStatus).Value)
}

func TestExport_Empty(t *testing.T) {
	out := Export(nil, annotate.NewSet(nil), ExportOptions{})
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}

func TestGrid(t *testing.T) {
	// Wednesday.
	anchor := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	appts := []model.Appointment{
		appt(1, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		appt(2, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)),
		appt(3, time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)),
		appt(4, time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)),
	}

	days, err := Grid(anchor, 7, time.Monday, appts)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, time.Monday, days[0].Date.Weekday())
	assert.Equal(t, 1, days[0].Date.Day())
	assert.Equal(t, []int64{1}, days[0].AppointmentIDs)
	assert.Equal(t, []int64{2, 3}, days[2].AppointmentIDs)
	assert.Empty(t, days[6].AppointmentIDs)
	assert.Equal(t, "Wed Jan 3", days[2].Label)
}

func TestGrid_SundayStartAndBounds(t *testing.T) {
	anchor := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	days, err := Grid(anchor, 100, ParseWeekStart("sunday"), nil)
	require.NoError(t, err)
	assert.Len(t, days, maxGridDays)
	assert.Equal(t, time.Sunday, days[0].Date.Weekday())
	assert.Equal(t, 31, days[0].Date.Day())

	_, err = Grid(anchor, 0, time.Monday, nil)
	assert.Error(t, err)
	assert.Equal(t, time.Monday, ParseWeekStart("friday"))
}
