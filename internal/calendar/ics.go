package calendar

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"apptboard/internal/annotate"
	"apptboard/internal/model"
	"apptboard/internal/render"
)

// PropertyStruck marks events the board has struck out. It is a private
// extension property; other calendar clients ignore it.
const PropertyStruck = ical.ComponentProperty("X-APPTBOARD-STRUCK")

// ExportOptions controls ICS generation.
type ExportOptions struct {
	// ProductID is the PRODID value. Empty means "-//apptboard//EN".
	ProductID string

	// UIDDomain is appended to each event UID ("appointment-7@<domain>").
	// Empty means "apptboard".
	UIDDomain string

	// Now is the DTSTAMP of every event. Zero means time.Now().
	Now time.Time
}

// Export serializes appointments as a VCALENDAR with one VEVENT each,
// in input order. Struck-out appointments are CANCELLED and carry X-APPTBOARD-STRUCK:TRUE.
func Export(appts []model.Appointment, annotations annotate.Set, opts ExportOptions) string {
	if opts.ProductID == "" {
		opts.ProductID = "-//apptboard//EN"
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = "apptboard"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)

	for _, a := range appts {
		ev := cal.AddEvent(EventUID(a.ID, opts.UIDDomain))
		ev.SetDtStampTime(opts.Now.UTC())
		ev.SetStartAt(a.Start.UTC())
		ev.SetEndAt(a.End.UTC())
		ev.SetSummary(render.Title(a.Service))
		ev.SetLocation("Bay " + a.Bay.Label)
		ev.SetDescription(describe(a))
		if ann, ok := annotations.Get(a.ID); ok && ann.Struck {
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
			ev.SetProperty(PropertyStruck, "TRUE")
		} else {
			ev.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
	}

	return cal.Serialize()
}

// EventUID is the stable UID of an appointment's VEVENT.
func EventUID(id int64, domain string) string {
	return "appointment-" + strconv.FormatInt(id, 10) + "@" + domain
}

func describe(a model.Appointment) string {
	lines := []string{
		"Customer: " + a.Customer.Account.FullName(),
		"Vehicle: " + render.VehicleText(a.Vehicle),
		"Status: " + a.Status.Label,
		"Staff: " + render.StaffText(a.Staffs),
	}
	return strings.Join(lines, "\n")
}
