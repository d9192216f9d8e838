package models

import (
	"strings"

	dErrors "hemalink/pkg/domain-errors"
)

// BloodGroup is an ABO/Rh blood group such as "AB+".
type BloodGroup string

const (
	APositive  BloodGroup = "A+"
	ANegative  BloodGroup = "A-"
	BPositive  BloodGroup = "B+"
	BNegative  BloodGroup = "B-"
	ABPositive BloodGroup = "AB+"
	ABNegative BloodGroup = "AB-"
	OPositive  BloodGroup = "O+"
	ONegative  BloodGroup = "O-"
)

// BloodGroups lists every group in canonical display order.
var BloodGroups = []BloodGroup{
	APositive, ANegative,
	BPositive, BNegative,
	ABPositive, ABNegative,
	OPositive, ONegative,
}

func (g BloodGroup) String() string {
	return string(g)
}

// IsValid reports whether g is one of the eight known groups.
func (g BloodGroup) IsValid() bool {
	for _, known := range BloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

// ParseBloodGroup normalizes case and surrounding space before validating.
func ParseBloodGroup(s string) (BloodGroup, error) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown blood group "+strings.TrimSpace(s))
	}
	return g, nil
}
