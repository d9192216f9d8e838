package models

import (
	"strings"
	"time"

	dErrors "hemalink/pkg/domain-errors"
)

// Registration limits. Enforced once at registration, never on read.
const (
	MinDonorAge    = 18
	MaxDonorAge    = 65
	MinDonorWeight = 50.0
)

// DonorStatus is the donor lifecycle state. Donors are never deleted.
type DonorStatus string

const (
	DonorStatusActive   DonorStatus = "active"
	DonorStatusInactive DonorStatus = "inactive"
)

// Donor is a registered blood donor.
//
// Invariants:
//   - TotalDonations is never negative
//   - LastDonation, when set, is a calendar date (midnight UTC)
//   - BloodGroup is immutable after registration
type Donor struct {
	ID                   string      `json:"donor_id"`
	Name                 string      `json:"name"`
	Email                string      `json:"email"`
	Phone                string      `json:"phone"`
	Age                  int         `json:"age"`
	Gender               string      `json:"gender"`
	BloodGroup           BloodGroup  `json:"blood_group"`
	Weight               float64     `json:"weight"`
	Address              string      `json:"address"`
	City                 string      `json:"city"`
	State                string      `json:"state"`
	Pincode              string      `json:"pincode"`
	MedicalHistory       string      `json:"medical_history"`
	EmergencyContact     string      `json:"emergency_contact"`
	PreferredContactTime string      `json:"preferred_contact_time"`
	Available            bool        `json:"available"`
	Status               DonorStatus `json:"status"`
	TotalDonations       int         `json:"total_donations"`
	LastDonation         *time.Time  `json:"last_donation"`
	RegisteredAt         time.Time   `json:"registered_at"`
}

// DonorRegistration is the input accepted when a donor signs up.
type DonorRegistration struct {
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Phone                string  `json:"phone"`
	Age                  int     `json:"age"`
	Gender               string  `json:"gender"`
	BloodGroup           string  `json:"blood_group"`
	Weight               float64 `json:"weight"`
	Address              string  `json:"address"`
	City                 string  `json:"city"`
	State                string  `json:"state"`
	Pincode              string  `json:"pincode"`
	MedicalHistory       string  `json:"medical_history"`
	EmergencyContact     string  `json:"emergency_contact"`
	PreferredContactTime string  `json:"preferred_contact_time"`
}

// NewDonor validates reg and returns an available, active donor with no
// donation history.
func NewDonor(id string, reg DonorRegistration, now time.Time) (*Donor, error) {
	if strings.TrimSpace(reg.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "donor name is required")
	}
	group, err := ParseBloodGroup(reg.BloodGroup)
	if err != nil {
		return nil, err
	}
	if reg.Age < MinDonorAge || reg.Age > MaxDonorAge {
		return nil, dErrors.New(dErrors.CodeValidation, "donor age must be between 18 and 65 years")
	}
	if reg.Weight < MinDonorWeight {
		return nil, dErrors.New(dErrors.CodeValidation, "donor weight must be at least 50kg")
	}
	return &Donor{
		ID:                   id,
		Name:                 strings.TrimSpace(reg.Name),
		Email:                strings.TrimSpace(reg.Email),
		Phone:                strings.TrimSpace(reg.Phone),
		Age:                  reg.Age,
		Gender:               reg.Gender,
		BloodGroup:           group,
		Weight:               reg.Weight,
		Address:              reg.Address,
		City:                 strings.TrimSpace(reg.City),
		State:                strings.TrimSpace(reg.State),
		Pincode:              strings.TrimSpace(reg.Pincode),
		MedicalHistory:       valueOr(reg.MedicalHistory, "None"),
		EmergencyContact:     reg.EmergencyContact,
		PreferredContactTime: valueOr(reg.PreferredContactTime, "Anytime"),
		Available:            true,
		Status:               DonorStatusActive,
		RegisteredAt:         now,
	}, nil
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (d *Donor) IsActive() bool {
	return d.Status == DonorStatusActive
}

// IsMatchable reports whether the donor may appear in match results.
func (d *Donor) IsMatchable() bool {
	return d.Available && d.IsActive()
}

// HasDonated reports whether a previous donation is on record.
func (d *Donor) HasDonated() bool {
	return d.LastDonation != nil
}

// ApplyDonation records a donation made on the given day.
func (d *Donor) ApplyDonation(on time.Time) {
	day := CalendarDate(on)
	d.LastDonation = &day
	d.TotalDonations++
}

// DonorUpdate carries the mutable profile fields; nil means unchanged.
type DonorUpdate struct {
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
	City      *string `json:"city,omitempty"`
	State     *string `json:"state,omitempty"`
	Available *bool   `json:"available,omitempty"`
}

// ApplyUpdate copies every non-nil field of u onto the donor.
func (d *Donor) ApplyUpdate(u DonorUpdate) {
	if u.Phone != nil {
		d.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Address != nil {
		d.Address = *u.Address
	}
	if u.City != nil {
		d.City = strings.TrimSpace(*u.City)
	}
	if u.State != nil {
		d.State = strings.TrimSpace(*u.State)
	}
	if u.Available != nil {
		d.Available = *u.Available
	}
}

// CanDeactivate returns an invariant violation when the donor is already inactive.
func (d *Donor) CanDeactivate() error {
	if !d.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "donor is already inactive")
	}
	return nil
}

func (d *Donor) ApplyDeactivation() {
	d.Status = DonorStatusInactive
}

// CanReactivate returns an invariant violation when the donor is already active.
func (d *Donor) CanReactivate() error {
	if d.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "donor is already active")
	}
	return nil
}

func (d *Donor) ApplyReactivation() {
	d.Status = DonorStatusActive
}
