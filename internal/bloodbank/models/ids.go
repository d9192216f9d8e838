package models

import (
	"strings"

	"github.com/google/uuid"
)

// Record ids are a type prefix plus eight upper-case hex characters.
const (
	DonorIDPrefix     = "DON"
	RequestorIDPrefix = "REQ"
	RequestIDPrefix   = "BR"
	DonationIDPrefix  = "DN"
)

func newID(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func NewDonorID() string     { return newID(DonorIDPrefix) }
func NewRequestorID() string { return newID(RequestorIDPrefix) }
func NewRequestID() string   { return newID(RequestIDPrefix) }
func NewDonationID() string  { return newID(DonationIDPrefix) }
