package models

import (
	"strings"
	"time"

	dErrors "hemalink/pkg/domain-errors"
)

// RequestStatus tracks how much of a request has been supplied.
//
//	pending   -> FulfilledUnits == 0
//	partial   -> 0 < FulfilledUnits < UnitsNeeded
//	fulfilled -> FulfilledUnits >= UnitsNeeded (terminal)
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusPartial   RequestStatus = "partial"
	RequestStatusFulfilled RequestStatus = "fulfilled"
)

func (s RequestStatus) rank() int {
	switch s {
	case RequestStatusPartial:
		return 1
	case RequestStatusFulfilled:
		return 2
	default:
		return 0
	}
}

// Urgency is the triage tier given by the requester.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ParseUrgency defaults an empty value to normal.
func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return UrgencyNormal, nil
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return u, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "urgency must be one of low, normal, high, critical")
	}
}

// BloodRequest asks for a number of units of one blood group.
//
// Invariants:
//   - UnitsNeeded > 0
//   - FulfilledUnits never decreases; it may exceed UnitsNeeded
//   - Status is derived from FulfilledUnits and never regresses
//   - MatchedDonors is a snapshot taken at submission and never re-validated
type BloodRequest struct {
	ID              string        `json:"request_id"`
	RequestorID     string        `json:"requestor_id"`
	PatientName     string        `json:"patient_name"`
	PatientAge      int           `json:"patient_age"`
	PatientGender   string        `json:"patient_gender"`
	BloodGroup      BloodGroup    `json:"blood_group"`
	UnitsNeeded     int           `json:"units_needed"`
	HospitalName    string        `json:"hospital_name"`
	HospitalAddress string        `json:"hospital_address"`
	Location        string        `json:"location"`
	City            string        `json:"city"`
	State           string        `json:"state"`
	ContactName     string        `json:"contact_name"`
	ContactPhone    string        `json:"contact_phone"`
	ContactEmail    string        `json:"contact_email"`
	Urgency         Urgency       `json:"urgency"`
	RequiredDate    string        `json:"required_date"`
	Reason          string        `json:"reason"`
	Status          RequestStatus `json:"status"`
	FulfilledUnits  int           `json:"fulfilled_units"`
	MatchedDonors   []string      `json:"matched_donors"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BloodRequestInput is the submission payload.
type BloodRequestInput struct {
	RequestorID     string `json:"requestor_id"`
	PatientName     string `json:"patient_name"`
	PatientAge      int    `json:"patient_age"`
	PatientGender   string `json:"patient_gender"`
	BloodGroup      string `json:"blood_group"`
	UnitsNeeded     int    `json:"units_needed"`
	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address"`
	City            string `json:"city"`
	State           string `json:"state"`
	ContactName     string `json:"contact_name"`
	ContactPhone    string `json:"contact_phone"`
	ContactEmail    string `json:"contact_email"`
	Urgency         string `json:"urgency"`
	RequiredDate    string `json:"required_date"`
	Reason          string `json:"reason"`
}

// NewBloodRequest validates in and returns a pending request. The request
// location is its city.
func NewBloodRequest(id string, in BloodRequestInput, now time.Time) (*BloodRequest, error) {
	if strings.TrimSpace(in.PatientName) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "patient name is required")
	}
	group, err := ParseBloodGroup(in.BloodGroup)
	if err != nil {
		return nil, err
	}
	if in.UnitsNeeded <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "units needed must be greater than zero")
	}
	urgency, err := ParseUrgency(in.Urgency)
	if err != nil {
		return nil, err
	}
	requestorID := strings.TrimSpace(in.RequestorID)
	if requestorID == "" {
		requestorID = GuestRequestor
	}
	city := strings.TrimSpace(in.City)
	return &BloodRequest{
		ID:              id,
		RequestorID:     requestorID,
		PatientName:     strings.TrimSpace(in.PatientName),
		PatientAge:      in.PatientAge,
		PatientGender:   in.PatientGender,
		BloodGroup:      group,
		UnitsNeeded:     in.UnitsNeeded,
		HospitalName:    in.HospitalName,
		HospitalAddress: in.HospitalAddress,
		Location:        city,
		City:            city,
		State:           strings.TrimSpace(in.State),
		ContactName:     in.ContactName,
		ContactPhone:    in.ContactPhone,
		ContactEmail:    in.ContactEmail,
		Urgency:         urgency,
		RequiredDate:    in.RequiredDate,
		Reason:          in.Reason,
		Status:          RequestStatusPending,
		MatchedDonors:   []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsGuest reports whether the request has no registered requestor.
func (r *BloodRequest) IsGuest() bool {
	return r.RequestorID == "" || r.RequestorID == GuestRequestor
}

// RemainingUnits is never negative, even after an overshoot.
func (r *BloodRequest) RemainingUnits() int {
	if rem := r.UnitsNeeded - r.FulfilledUnits; rem > 0 {
		return rem
	}
	return 0
}

// CanFulfill validates a fulfillment of units against the current state.
func (r *BloodRequest) CanFulfill(units int) error {
	if units < 0 {
		return dErrors.New(dErrors.CodeValidation, "units fulfilled must not be negative")
	}
	if r.Status == RequestStatusFulfilled {
		return dErrors.New(dErrors.CodeInvariantViolation, "request is already fulfilled")
	}
	return nil
}

// ApplyFulfillment adds units to the fulfilled counter without capping it
// and recomputes the status. Call CanFulfill first.
func (r *BloodRequest) ApplyFulfillment(units int, now time.Time) {
	r.FulfilledUnits += units
	next := RequestStatusPending
	switch {
	case r.FulfilledUnits >= r.UnitsNeeded:
		next = RequestStatusFulfilled
	case r.FulfilledUnits > 0:
		next = RequestStatusPartial
	}
	if next.rank() > r.Status.rank() {
		r.Status = next
	}
	r.UpdatedAt = now
}
