package models

import (
	"strings"
	"time"

	dErrors "hemalink/pkg/domain-errors"
)

// GuestRequestor marks a request submitted without a registered requestor.
const GuestRequestor = "GUEST"

// Requestor is a hospital or individual that submits blood requests.
type Requestor struct {
	ID            string    `json:"requestor_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Organization  string    `json:"organization"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Pincode       string    `json:"pincode"`
	TotalRequests int       `json:"total_requests"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// RequestorRegistration is the input accepted when a requestor signs up.
type RequestorRegistration struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
}

func NewRequestor(id string, reg RequestorRegistration, now time.Time) (*Requestor, error) {
	if strings.TrimSpace(reg.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requestor name is required")
	}
	return &Requestor{
		ID:           id,
		Name:         strings.TrimSpace(reg.Name),
		Email:        strings.TrimSpace(reg.Email),
		Phone:        strings.TrimSpace(reg.Phone),
		Organization: valueOr(reg.Organization, "Individual"),
		Address:      reg.Address,
		City:         strings.TrimSpace(reg.City),
		State:        strings.TrimSpace(reg.State),
		Pincode:      strings.TrimSpace(reg.Pincode),
		RegisteredAt: now,
	}, nil
}
