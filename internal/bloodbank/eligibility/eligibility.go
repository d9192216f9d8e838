// Package eligibility scores donors for a match and decides whether they may
// donate again. Everything here is a pure function of its inputs; callers
// pass the clock.
package eligibility

import (
	"time"

	"hemalink/internal/bloodbank/models"
)

// MinDonationIntervalDays is the minimum gap between two donations.
const MinDonationIntervalDays = 56

const (
	MinScore = 0
	MaxScore = 150

	baseScore               = 100
	primeAgeBonus           = 10
	outOfRangeAgePenalty    = 50
	unavailablePenalty      = 100
	restedDonorBonus        = 5
	restedDonorAfterDays    = 90
	newDonorBonus           = 10
	perDonationBonus        = 2
	maxDonationHistoryBonus = 20
)

const day = 24 * time.Hour

// DaysSince returns the whole days elapsed from then to now, rounded down.
func DaysSince(then, now time.Time) int {
	d := now.Sub(then)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}

// CalendarDaysSince counts calendar days, in UTC, from the day of then to the
// day of now.
func CalendarDaysSince(then, now time.Time) int {
	return DaysSince(models.CalendarDate(then), models.CalendarDate(now))
}

// CanDonateNow is true for a first-time donor, or once at least
// MinDonationIntervalDays have passed since the last donation.
func CanDonateNow(lastDonation *time.Time, now time.Time) bool {
	if lastDonation == nil {
		return true
	}
	return CalendarDaysSince(*lastDonation, now) >= MinDonationIntervalDays
}

// NextEligibleDate is the first day a donor may donate again. The zero time
// means "now".
func NextEligibleDate(lastDonation *time.Time) time.Time {
	if lastDonation == nil {
		return time.Time{}
	}
	return models.CalendarDate(*lastDonation).AddDate(0, 0, MinDonationIntervalDays)
}

// Score rates a donor for matching, clamped to [MinScore, MaxScore].
func Score(d *models.Donor, now time.Time) int {
	score := baseScore

	switch {
	case d.Age >= 25 && d.Age <= 45:
		score += primeAgeBonus
	case d.Age < models.MinDonorAge || d.Age > models.MaxDonorAge:
		score -= outOfRangeAgePenalty
	}

	if !d.Available {
		score -= unavailablePenalty
	}

	if d.LastDonation != nil {
		if CalendarDaysSince(*d.LastDonation, now) > restedDonorAfterDays {
			score += restedDonorBonus
		}
	} else {
		score += newDonorBonus
	}

	score += min(d.TotalDonations*perDonationBonus, maxDonationHistoryBonus)

	return max(MinScore, min(score, MaxScore))
}
