package models

import (
	"time"

	dErrors "hemalink/pkg/domain-errors"
)

// DefaultDonationCenter is used when a donation names no center.
const DefaultDonationCenter = "Main Center"

// Donation is an append-only record of one donation event.
type Donation struct {
	ID             string     `json:"donation_id"`
	DonorID        string     `json:"donor_id"`
	DonorName      string     `json:"donor_name"`
	BloodGroup     BloodGroup `json:"blood_group"`
	Units          int        `json:"units"`
	DonationDate   time.Time  `json:"donation_date"`
	DonationCenter string     `json:"donation_center"`
	Notes          string     `json:"notes"`
}

// DonationInput is the payload for recording a donation. Zero units means one.
type DonationInput struct {
	Units          int    `json:"units"`
	DonationCenter string `json:"donation_center"`
	Notes          string `json:"notes"`
}

// NewDonation builds the donation record for donor on the given day.
func NewDonation(id string, donor *Donor, in DonationInput, on time.Time) (*Donation, error) {
	units := in.Units
	if units == 0 {
		units = 1
	}
	if units < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "donation units must be at least 1")
	}
	return &Donation{
		ID:             id,
		DonorID:        donor.ID,
		DonorName:      donor.Name,
		BloodGroup:     donor.BloodGroup,
		Units:          units,
		DonationDate:   CalendarDate(on),
		DonationCenter: valueOr(in.DonationCenter, DefaultDonationCenter),
		Notes:          in.Notes,
	}, nil
}
