package models

// MatchReportSize caps the ranked donor list of a match report.
const MatchReportSize = 10

// ScoredDonor is a donor annotated for one match.
type ScoredDonor struct {
	Donor
	MatchScore   int  `json:"match_score"`
	CanDonateNow bool `json:"can_donate_now"`
}

// MatchReport summarizes how a request could be supplied.
//
// Fulfillable is optimistic: stock covers the need, or at least one
// compatible donor exists. Donor willingness is not checked.
type MatchReport struct {
	BloodGroup      BloodGroup    `json:"blood_group"`
	UnitsNeeded     int           `json:"units_needed"`
	StockUnits      int           `json:"exact_match_inventory"`
	Donors          []ScoredDonor `json:"compatible_donors"`
	TotalCompatible int           `json:"total_compatible"`
	Fulfillable     bool          `json:"fulfillable"`
}

// DonorIDs returns the ids of the ranked donors, in rank order.
func (r *MatchReport) DonorIDs() []string {
	ids := make([]string, len(r.Donors))
	for i, d := range r.Donors {
		ids[i] = d.ID
	}
	return ids
}

// Statistics is the dashboard summary across every collection.
type Statistics struct {
	TotalDonors       int              `json:"total_donors"`
	TotalRequestors   int              `json:"total_requestors"`
	TotalRequests     int              `json:"total_requests"`
	TotalDonations    int              `json:"total_donations"`
	ActiveRequests    int              `json:"active_requests"`
	FulfilledRequests int              `json:"fulfilled_requests"`
	TotalUnits        int              `json:"total_units"`
	CriticalGroups    []BloodGroup     `json:"critical_groups"`
	Inventory         []InventoryEntry `json:"inventory"`
}
