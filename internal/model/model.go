package model

import (
	"encoding/json"
	"time"
)

// Account is the identity record shared by customers and staff.
type Account struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Optional contact details; nil when the upstream has no value.
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone_1,omitempty"`
	Address *string `json:"address,omitempty"`

	// ImageProfile is a path relative to the upstream /static/ directory.
	ImageProfile string `json:"image_profile"`
}

// FullName joins first and last name, skipping empty parts.
func (a Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

type Customer struct {
	ID           int64   `json:"id"`
	Account      Account `json:"account"`
	IsRegistered bool    `json:"is_registered"`
	IsPWD        bool    `json:"is_pwd"`
	IsSenior     bool    `json:"is_senior"`
}

type Staff struct {
	ID          int64   `json:"id"`
	Account     Account `json:"account"`
	IsFrontDesk bool    `json:"is_front_desk"`
	IsOnShift   bool    `json:"is_on_shift"`
}

// Service is a catalog entry. Duration is in minutes.
type Service struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Duration    int     `json:"duration"`
}

// Vehicle is shown in the context of an appointment; Owner is a reference,
// not ownership, and may be absent.
type Vehicle struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Model       string    `json:"model"`
	PlateNumber *string   `json:"plate_number,omitempty"`
	Owner       *Customer `json:"owner,omitempty"`
}

type Bay struct {
	ID    int64  `json:"id"`
	Label string `json:"bay"`
}

// Status is the upstream lifecycle label ("Pending", "Done", ...). It is not
// interpreted as a state machine.
type Status struct {
	ID    int64  `json:"id"`
	Label string `json:"status"`
}

// Opaque is a payload whose schema is unknown. It is carried through
// untouched and never parsed.
type Opaque = json.RawMessage

// Appointment is the top-level aggregate the board iterates over.
type Appointment struct {
	ID    int64     `json:"id"`
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`

	Customer Customer `json:"customer"`
	Service  Service  `json:"service"`
	Vehicle  Vehicle  `json:"vehicle"`
	Bay      Bay      `json:"bay"`
	Status   Status   `json:"status"`
	Staffs   []Staff  `json:"staffs"`

	Payments  []Opaque `json:"payments,omitempty"`
	Feedbacks []Opaque `json:"feedbacks,omitempty"`
}

// Duration is End - Start.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}
