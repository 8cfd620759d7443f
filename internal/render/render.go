package render

import (
	"strconv"
	"strings"
	"time"

	"apptboard/internal/annotate"
	"apptboard/internal/model"
)

const (
	// NoStaff is shown when an appointment has no assigned staff.
	NoStaff = "No staff assigned"

	// EmptyState is shown when there is nothing to list.
	EmptyState = "No appointments available."

	defaultTimeLayout = "3:04 PM"
)

// Options controls display formatting. The zero value renders times in
// UTC with the default layout and no avatar URLs.
type Options struct {
	// Location is the display timezone. nil means UTC.
	Location *time.Location

	// TimeLayout formats Start/End. Empty means "3:04 PM".
	TimeLayout string

	// AssetURL maps an account image reference to a fetchable URL.
	AssetURL func(imageProfile string) string
}

// ViewModel is one rendered appointment card. Optional fields are empty
// strings with a matching Has* flag; the UI shows them only when the flag
// is set and never prints "null".
type ViewModel struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`

	Service     string  `json:"service"`
	Duration    int     `json:"duration_minutes"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`

	CustomerName string `json:"customer_name"`
	Email        string `json:"email,omitempty"`
	HasEmail     bool   `json:"has_email"`
	Phone        string `json:"phone,omitempty"`
	HasPhone     bool   `json:"has_phone"`
	Address      string `json:"address,omitempty"`
	HasAddress   bool   `json:"has_address"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	AvatarAlt    string `json:"avatar_alt"`
	IsRegistered bool   `json:"is_registered"`
	IsPWD        bool   `json:"is_pwd"`
	IsSenior     bool   `json:"is_senior"`

	Vehicle  string `json:"vehicle"`
	HasPlate bool   `json:"has_plate"`
	Bay      string `json:"bay"`
	Status   string `json:"status"`

	StartText string    `json:"start_text"`
	EndText   string    `json:"end_text"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	StaffText  string `json:"staff_text"`
	StaffCount int    `json:"staff_count"`

	Annotation annotate.Annotation `json:"annotation"`
}

// Render maps appointments to view models in input order, attaching the
// annotation whose id matches. Annotations for ids not present in appts
// are ignored here and left in the set. Render does not modify appts.
func Render(appts []model.Appointment, annotations annotate.Set, opts Options) []ViewModel {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := opts.TimeLayout
	if layout == "" {
		layout = defaultTimeLayout
	}

	out := make([]ViewModel, 0, len(appts))
	for _, a := range appts {
		out = append(out, renderOne(a, annotations, loc, layout, opts.AssetURL))
	}
	return out
}

func renderOne(a model.Appointment, annotations annotate.Set, loc *time.Location, layout string, assetURL func(string) string) ViewModel {
	acc := a.Customer.Account
	vm := ViewModel{
		ID:    a.ID,
		Title: Title(a.Service),

		Service:     a.Service.Name,
		Duration:    a.Service.Duration,
		Price:       a.Service.Price,
		Description: a.Service.Description,

		CustomerName: acc.FullName(),
		AvatarAlt:    acc.FirstName,
		IsRegistered: a.Customer.IsRegistered,
		IsPWD:        a.Customer.IsPWD,
		IsSenior:     a.Customer.IsSenior,

		Vehicle:  VehicleText(a.Vehicle),
		HasPlate: a.Vehicle.PlateNumber != nil,
		Bay:      a.Bay.Label,
		Status:   a.Status.Label,

		StartText: a.Start.In(loc).Format(layout),
		EndText:   a.End.In(loc).Format(layout),
		Start:     a.Start.In(loc),
		End:       a.End.In(loc),

		StaffText:  StaffText(a.Staffs),
		StaffCount: len(a.Staffs),
	}

	vm.Email, vm.HasEmail = deref(acc.Email)
	vm.Phone, vm.HasPhone = deref(acc.Phone)
	vm.Address, vm.HasAddress = deref(acc.Address)

	if assetURL != nil && acc.ImageProfile != "" {
		vm.AvatarURL = assetURL(acc.ImageProfile)
	}

	if ann, ok := annotations.Get(a.ID); ok {
		vm.Annotation = ann
	}
	return vm
}

// Title is "{service} ({duration} min)".
func Title(s model.Service) string {
	return s.Name + " (" + strconv.Itoa(s.Duration) + " min)"
}

// VehicleText is "{type} - {model}", followed by " ({plate})" when a plate
// number is known.
func VehicleText(v model.Vehicle) string {
	text := v.Type + " - " + v.Model
	if v.PlateNumber != nil {
		text += " (" + *v.PlateNumber + ")"
	}
	return text
}

// StaffText joins staff full names with ", ", or returns NoStaff.
func StaffText(staffs []model.Staff) string {
	if len(staffs) == 0 {
		return NoStaff
	}
	names := make([]string, 0, len(staffs))
	for _, s := range staffs {
		names = append(names, s.Account.FullName())
	}
	return strings.Join(names, ", ")
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
