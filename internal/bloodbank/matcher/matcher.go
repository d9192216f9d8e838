// Package matcher finds and ranks donors compatible with a recipient group.
package matcher

import (
	"context"
	"slices"
	"strings"
	"time"

	"hemalink/internal/bloodbank/eligibility"
	"hemalink/internal/bloodbank/models"
	pstrings "hemalink/pkg/platform/strings"
)

// DonorSource lists every donor in stable insertion order.
type DonorSource interface {
	ListDonors(ctx context.Context) ([]models.Donor, error)
}

// Matcher runs compatibility searches over a donor source.
type Matcher struct {
	donors DonorSource
}

func New(donors DonorSource) *Matcher {
	return &Matcher{donors: donors}
}

// FindCompatible returns the matchable donors able to supply recipient,
// optionally restricted to a location, most recent donors first.
func (m *Matcher) FindCompatible(ctx context.Context, recipient models.BloodGroup, location string) ([]models.Donor, error) {
	donors, err := m.donors.ListDonors(ctx)
	if err != nil {
		return nil, err
	}
	return FindCompatible(donors, recipient, location), nil
}

// FindCompatible is the pure form of Matcher.FindCompatible.
func FindCompatible(donors []models.Donor, recipient models.BloodGroup, location string) []models.Donor {
	groups := models.CompatibleDonorGroups(recipient)
	location = strings.TrimSpace(location)

	out := make([]models.Donor, 0, len(donors))
	for _, d := range donors {
		if !slices.Contains(groups, d.BloodGroup) || !d.IsMatchable() {
			continue
		}
		if location != "" && !InCityOrState(&d, location) {
			continue
		}
		out = append(out, d)
	}
	SortByLastDonation(out)
	return out
}

// InCityOrState matches location as a case-insensitive substring of the
// donor's city or state.
func InCityOrState(d *models.Donor, location string) bool {
	return pstrings.ContainsFold(d.City, location) || pstrings.ContainsFold(d.State, location)
}

// SortByLastDonation orders donors by last donation date, newest first.
// Donors who never donated sort as the zero time, after everyone else.
// Equal dates keep their input order.
func SortByLastDonation(donors []models.Donor) {
	slices.SortStableFunc(donors, func(a, b models.Donor) int {
		return lastDonation(b).Compare(lastDonation(a))
	})
}

func lastDonation(d models.Donor) time.Time {
	if d.LastDonation == nil {
		return time.Time{}
	}
	return *d.LastDonation
}

// Rank scores donors at now and orders them by score, highest first. Equal
// scores keep their input order.
func Rank(donors []models.Donor, now time.Time) []models.ScoredDonor {
	scored := make([]models.ScoredDonor, len(donors))
	for i := range donors {
		scored[i] = models.ScoredDonor{
			Donor:        donors[i],
			MatchScore:   eligibility.Score(&donors[i], now),
			CanDonateNow: eligibility.CanDonateNow(donors[i].LastDonation, now),
		}
	}
	slices.SortStableFunc(scored, func(a, b models.ScoredDonor) int {
		return b.MatchScore - a.MatchScore
	})
	return scored
}

// SearchCriteria filters a donor search. Zero values match everything.
type SearchCriteria struct {
	BloodGroup models.BloodGroup
	Location   string
}

// Search returns matchable donors with exactly the requested group whose
// city, state or pincode contains the location.
func Search(donors []models.Donor, c SearchCriteria) []models.Donor {
	location := strings.TrimSpace(c.Location)
	out := make([]models.Donor, 0)
	for _, d := range donors {
		if c.BloodGroup != "" && d.BloodGroup != c.BloodGroup {
			continue
		}
		if location != "" && !InCityOrState(&d, location) && !pstrings.ContainsFold(d.Pincode, location) {
			continue
		}
		if d.IsMatchable() {
			out = append(out, d)
		}
	}
	return out
}
