package appointment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "apptboard/internal/log"
	"apptboard/internal/model"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e12 seconds is far in the future, 1e12 ms is September 2001.
const epochMillisThreshold = 1e12

// naiveLayouts are tried after RFC 3339 and are interpreted in the
// validator's location. Go accepts fractional seconds after the seconds
// field even when the layout omits them.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var errNotObject = errors.New("record is not a JSON object")

// Validator turns raw upstream records into model.Appointment values.
// It is stateless apart from its location and safe for concurrent use.
type Validator struct {
	loc *time.Location
}

// NewValidator returns a Validator that interprets naive timestamps in loc
// and converts every parsed time into loc. A nil loc means UTC.
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{loc: loc}
}

// Location is the display/interpretation location.
func (v *Validator) Location() *time.Location {
	return v.loc
}

// ValidateBatch validates every record independently. Valid appointments
// keep input order; each failure is returned as a *RecordError and does not
// stop the rest of the batch. A repeated id is rejected after its first
// occurrence.
func (v *Validator) ValidateBatch(raws []RawRecord) ([]model.Appointment, []error) {
	out := make([]model.Appointment, 0, len(raws))
	errs := make([]error, 0)
	seen := make(map[int64]struct{}, len(raws))

	for i, raw := range raws {
		appt, err := v.Validate(raw)
		if err != nil {
			rerr := &RecordError{Index: i, ID: peekID(raw), Err: err}
			appLog.Error("appointment record rejected", err, "index", i, "id", rerr.ID)
			errs = append(errs, rerr)
			continue
		}
		if _, dup := seen[appt.ID]; dup {
			rerr := &RecordError{Index: i, ID: appt.ID, Err: &DuplicateIDError{ID: appt.ID}}
			appLog.Error("appointment record rejected", rerr.Err, "index", i, "id", appt.ID)
			errs = append(errs, rerr)
			continue
		}
		seen[appt.ID] = struct{}{}
		out = append(out, appt)
	}

	appLog.Debug("appointment validation completed", "total", len(raws), "valid", len(out), "rejected", len(errs))
	return out, errs
}

// Validate checks that every required nested object is present, fills
// optional fields with nil, and parses start/end times.
//
// Required: id, customer, customer.account, service, vehicle, bay, status,
// start_time, end_time. An object counts as missing when it is absent, null
// or {} (the upstream serializes a missing relation as an empty object).
func (v *Validator) Validate(raw RawRecord) (model.Appointment, error) {
	var appt model.Appointment

	fields, err := objectFields(raw)
	if err != nil {
		return appt, err
	}

	idRaw, ok := present(fields, "id")
	if !ok {
		return appt, &MissingFieldError{Path: "id"}
	}
	if err := json.Unmarshal(idRaw, &appt.ID); err != nil {
		return appt, fmt.Errorf("invalid id: %w", err)
	}

	customer, err := requireObject(fields, "customer")
	if err != nil {
		return appt, err
	}
	if _, err := requireObject(customer, "account", "customer"); err != nil {
		return appt, err
	}
	for _, name := range []string{"service", "vehicle", "bay", "status"} {
		if _, err := requireObject(fields, name); err != nil {
			return appt, err
		}
	}

	if err := decodeField("customer", fields["customer"], &appt.Customer); err != nil {
		return appt, err
	}
	normalizeAccount(&appt.Customer.Account)

	if err := decodeField("service", fields["service"], &appt.Service); err != nil {
		return appt, err
	}
	if err := decodeField("bay", fields["bay"], &appt.Bay); err != nil {
		return appt, err
	}
	if err := decodeField("status", fields["status"], &appt.Status); err != nil {
		return appt, err
	}
	if appt.Vehicle, err = decodeVehicle(fields["vehicle"]); err != nil {
		return appt, err
	}
	if appt.Staffs, err = decodeStaffs(fields); err != nil {
		return appt, err
	}

	if appt.Start, err = v.parseTime(fields, "start_time"); err != nil {
		return appt, err
	}
	if appt.End, err = v.parseTime(fields, "end_time"); err != nil {
		return appt, err
	}
	if appt.End.Before(appt.Start) {
		return appt, &TimeRangeError{
			Start: appt.Start.Format(time.RFC3339),
			End:   appt.End.Format(time.RFC3339),
		}
	}

	appt.Payments = opaqueList(fields, "payments")
	appt.Feedbacks = opaqueList(fields, "feedbacks")

	return appt, nil
}

func (v *Validator) parseTime(fields map[string]json.RawMessage, name string) (time.Time, error) {
	raw, ok := present(fields, name)
	if !ok {
		return time.Time{}, &MissingFieldError{Path: name}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, &TimeParseError{Field: name, Value: string(raw), Err: err}
		}
		return v.parseTimeString(name, s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return v.parseEpoch(name, raw)
	default:
		return time.Time{}, &TimeParseError{Field: name, Value: string(raw), Err: errors.New("unsupported JSON type")}
	}
}

func (v *Validator) parseTimeString(name, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &MissingFieldError{Path: name}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(v.loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, v.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &TimeParseError{Field: name, Value: s, Err: errors.New("not ISO-8601")}
}

func (v *Validator) parseEpoch(name string, raw json.RawMessage) (time.Time, error) {
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, &TimeParseError{Field: name, Value: string(raw), Err: err}
	}
	if f >= epochMillisThreshold || f <= -epochMillisThreshold {
		return time.UnixMilli(int64(f)).In(v.loc), nil
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(v.loc), nil
}

func decodeVehicle(raw json.RawMessage) (model.Vehicle, error) {
	var out model.Vehicle
	if err := decodeField("vehicle", raw, &out); err != nil {
		return out, err
	}
	out.PlateNumber = optional(out.PlateNumber)
	fields, err := objectFields(raw)
	if err != nil {
		return out, err
	}
	if _, ok := presentObject(fields, "owner"); !ok {
		out.Owner = nil
	} else if out.Owner != nil {
		normalizeAccount(&out.Owner.Account)
	}
	return out, nil
}

func decodeStaffs(fields map[string]json.RawMessage) ([]model.Staff, error) {
	raw, ok := present(fields, "staffs")
	if !ok {
		return []model.Staff{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid staffs: %w", err)
	}

	out := make([]model.Staff, 0, len(items))
	for i, item := range items {
		prefix := "staffs[" + strconv.Itoa(i) + "]"
		staff, err := objectFields(item)
		if err != nil {
			return nil, &MissingFieldError{Path: prefix}
		}
		if _, err := requireObject(staff, "account", prefix); err != nil {
			return nil, err
		}
		var s model.Staff
		if err := decodeField(prefix, item, &s); err != nil {
			return nil, err
		}
		normalizeAccount(&s.Account)
		out = append(out, s)
	}
	return out, nil
}

func opaqueList(fields map[string]json.RawMessage, name string) []model.Opaque {
	raw, ok := present(fields, name)
	if !ok || raw[0] != '[' {
		return nil
	}
	var items []model.Opaque
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// objectFields decodes raw into its top-level members.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotObject, err)
	}
	return fields, nil
}

// present returns the trimmed value of name unless it is absent or null.
func present(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	return raw, true
}

// presentObject is present plus "is a non-empty JSON object".
func presentObject(fields map[string]json.RawMessage, name string) (map[string]json.RawMessage, bool) {
	raw, ok := present(fields, name)
	if !ok {
		return nil, false
	}
	obj, err := objectFields(raw)
	if err != nil || len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

func requireObject(fields map[string]json.RawMessage, name string, parent ...string) (map[string]json.RawMessage, error) {
	obj, ok := presentObject(fields, name)
	if !ok {
		path := name
		if len(parent) > 0 && parent[0] != "" {
			path = parent[0] + "." + name
		}
		return nil, &MissingFieldError{Path: path}
	}
	return obj, nil
}

func decodeField(path string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid %s: %w", path, err)
	}
	return nil
}

func normalizeAccount(a *model.Account) {
	a.Email = optional(a.Email)
	a.Phone = optional(a.Phone)
	a.Address = optional(a.Address)
}

// optional maps nil, "" and whitespace-only strings to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// peekID extracts the record id for error reporting, 0 if unreadable.
func peekID(raw RawRecord) int64 {
	var probe struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0
	}
	return probe.ID
}
