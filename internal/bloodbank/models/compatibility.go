package models

// compatibility maps a recipient group to the donor groups that may supply
// it. O- gives to everyone; AB+ receives from everyone.
var compatibility = map[BloodGroup][]BloodGroup{
	APositive:  {APositive, ANegative, OPositive, ONegative},
	ANegative:  {ANegative, ONegative},
	BPositive:  {BPositive, BNegative, OPositive, ONegative},
	BNegative:  {BNegative, ONegative},
	ABPositive: {APositive, ANegative, BPositive, BNegative, ABPositive, ABNegative, OPositive, ONegative},
	ABNegative: {ANegative, BNegative, ABNegative, ONegative},
	OPositive:  {OPositive, ONegative},
	ONegative:  {ONegative},
}

// CompatibleDonorGroups returns the donor groups that can supply recipient,
// in table order. An unknown recipient yields an empty slice, not an error:
// "unknown group" and "no compatible donors" are the same outcome.
func CompatibleDonorGroups(recipient BloodGroup) []BloodGroup {
	groups := compatibility[recipient]
	out := make([]BloodGroup, len(groups))
	copy(out, groups)
	return out
}

// CanSupply reports whether a donor of group donor may give to recipient.
func CanSupply(donor, recipient BloodGroup) bool {
	for _, g := range compatibility[recipient] {
		if g == donor {
			return true
		}
	}
	return false
}
