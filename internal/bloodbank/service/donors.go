package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"hemalink/internal/bloodbank/eligibility"
	"hemalink/internal/bloodbank/events"
	"hemalink/internal/bloodbank/inventory"
	"hemalink/internal/bloodbank/matcher"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/requestcontext"
)

// DonorDashboard is a donor with their donation history.
type DonorDashboard struct {
	Donor            *models.Donor     `json:"donor"`
	Donations        []models.Donation `json:"donations"`
	CanDonateNow     bool              `json:"can_donate_now"`
	NextEligibleDate *time.Time        `json:"next_eligible_date,omitempty"`
}

// DonationResult is the outcome of RecordDonation.
type DonationResult struct {
	Donation  *models.Donation       `json:"donation"`
	Donor     *models.Donor          `json:"donor"`
	Inventory *models.InventoryEntry `json:"inventory"`
}

// RegisterDonor validates reg, stores the donor and adds it to the donor set
// of its blood group's inventory entry.
func (s *Service) RegisterDonor(ctx context.Context, reg models.DonorRegistration) (*models.Donor, error) {
	now := requestcontext.Now(ctx)
	donor, err := models.NewDonor(models.NewDonorID(), reg, now)
	if err != nil {
		return nil, err
	}

	err = s.backend.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		recs := store.New(rs)
		if err := recs.PutDonor(ctx, donor); err != nil {
			return err
		}
		return inventory.AddDonor(ctx, recs, donor.BloodGroup, donor.ID, now)
	}, store.DonorKey(donor.ID), store.InventoryKey(donor.BloodGroup))
	if err != nil {
		return nil, store.WrapErr(err, "donor")
	}

	s.metrics.IncrementDonorsRegistered()
	s.logger.InfoContext(ctx, "donor registered",
		"donor_id", donor.ID,
		"blood_group", donor.BloodGroup.String(),
	)
	s.notifier.Notify(ctx, events.KindDonorRegistered, donor.ID,
		fmt.Sprintf("%s registered as a %s donor in %s", donor.Name, donor.BloodGroup, donor.City))
	return donor, nil
}

func (s *Service) GetDonor(ctx context.Context, id string) (*models.Donor, error) {
	donor, err := s.records.GetDonor(ctx, id)
	if err != nil {
		return nil, store.WrapErr(err, "donor")
	}
	return donor, nil
}

// DonorDashboard returns the donor, their donations newest first, and
// whether they may donate today.
func (s *Service) DonorDashboard(ctx context.Context, id string) (*DonorDashboard, error) {
	donor, err := s.GetDonor(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.ListDonations(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]models.Donation, 0)
	for _, d := range all {
		if d.DonorID == id {
			history = append(history, d)
		}
	}

	dash := &DonorDashboard{
		Donor:        donor,
		Donations:    history,
		CanDonateNow: eligibility.CanDonateNow(donor.LastDonation, requestcontext.Now(ctx)),
	}
	if next := eligibility.NextEligibleDate(donor.LastDonation); !next.IsZero() {
		dash.NextEligibleDate = &next
	}
	return dash, nil
}

// UpdateDonor applies the non-nil fields of u.
func (s *Service) UpdateDonor(ctx context.Context, id string, u models.DonorUpdate) (*models.Donor, error) {
	return s.mutateDonor(ctx, id, func(d *models.Donor) error {
		d.ApplyUpdate(u)
		return nil
	})
}

// DeactivateDonor hides the donor from matching and search. Donors are
// never deleted.
func (s *Service) DeactivateDonor(ctx context.Context, id string) (*models.Donor, error) {
	return s.mutateDonor(ctx, id, func(d *models.Donor) error {
		if err := d.CanDeactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, err.Error())
		}
		d.ApplyDeactivation()
		return nil
	})
}

func (s *Service) ReactivateDonor(ctx context.Context, id string) (*models.Donor, error) {
	return s.mutateDonor(ctx, id, func(d *models.Donor) error {
		if err := d.CanReactivate(); err != nil {
			return dErrors.New(dErrors.CodeConflict, err.Error())
		}
		d.ApplyReactivation()
		return nil
	})
}

func (s *Service) mutateDonor(ctx context.Context, id string, mutate func(*models.Donor) error) (*models.Donor, error) {
	var updated *models.Donor
	err := s.backend.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		recs := store.New(rs)
		donor, err := recs.GetDonor(ctx, id)
		if err != nil {
			return store.WrapErr(err, "donor")
		}
		if err := mutate(donor); err != nil {
			return err
		}
		if err := recs.PutDonor(ctx, donor); err != nil {
			return err
		}
		updated = donor
		return nil
	}, store.DonorKey(id))
	if err != nil {
		return nil, store.WrapErr(err, "donor")
	}
	s.logger.InfoContext(ctx, "donor updated",
		"donor_id", id,
		"status", string(updated.Status),
		"available", updated.Available,
	)
	return updated, nil
}

// RecordDonation appends a donation, moves the donor's last donation date to
// today and adds the units to stock, all in one transaction. A donor still
// inside the donation interval is rejected with a conflict.
func (s *Service) RecordDonation(ctx context.Context, donorID string, in models.DonationInput) (*DonationResult, error) {
	current, err := s.GetDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	group := current.BloodGroup
	donationID := models.NewDonationID()

	var result DonationResult
	err = s.backend.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		recs := store.New(rs)
		now := requestcontext.Now(ctx)

		donor, err := recs.GetDonor(ctx, donorID)
		if err != nil {
			return store.WrapErr(err, "donor")
		}
		if !eligibility.CanDonateNow(donor.LastDonation, now) {
			next := eligibility.NextEligibleDate(donor.LastDonation)
			return dErrors.New(dErrors.CodeConflict, fmt.Sprintf(
				"donor must wait %d days between donations; next eligible on %s",
				eligibility.MinDonationIntervalDays, next.Format(time.DateOnly)))
		}
		donation, err := models.NewDonation(donationID, donor, in, now)
		if err != nil {
			return err
		}
		donor.ApplyDonation(now)

		if err := recs.PutDonor(ctx, donor); err != nil {
			return err
		}
		if err := recs.PutDonation(ctx, donation); err != nil {
			return err
		}
		entry, _, err := inventory.Apply(ctx, recs, group, donation.Units, models.DirectionAdd, now)
		if err != nil {
			return err
		}
		result = DonationResult{Donation: donation, Donor: donor, Inventory: entry}
		return nil
	}, store.DonorKey(donorID), store.DonationKey(donationID), store.InventoryKey(group))
	if err != nil {
		return nil, store.WrapErr(err, "donor")
	}

	s.metrics.IncrementDonationsRecorded()
	s.logger.InfoContext(ctx, "donation recorded",
		"donation_id", donationID,
		"donor_id", donorID,
		"blood_group", group.String(),
		"units", result.Donation.Units,
	)
	s.notifier.Notify(ctx, events.KindDonationRecorded, donationID,
		fmt.Sprintf("%s donated %d unit(s) of %s at %s",
			result.Donor.Name, result.Donation.Units, group, result.Donation.DonationCenter))
	return &result, nil
}

// ListDonors returns every donor in registration order.
func (s *Service) ListDonors(ctx context.Context) ([]models.Donor, error) {
	donors, err := s.records.ListDonors(ctx)
	if err != nil {
		return nil, store.WrapErr(err, "donors")
	}
	return donors, nil
}

// SearchDonors filters matchable donors by exact blood group and a location
// matched against city, state or pincode. Empty arguments match everything.
func (s *Service) SearchDonors(ctx context.Context, bloodGroup, location string) ([]models.Donor, error) {
	criteria := matcher.SearchCriteria{Location: location}
	if bloodGroup != "" {
		group, err := models.ParseBloodGroup(bloodGroup)
		if err != nil {
			return nil, err
		}
		criteria.BloodGroup = group
	}
	donors, err := s.ListDonors(ctx)
	if err != nil {
		return nil, err
	}
	return matcher.Search(donors, criteria), nil
}

// ListDonations returns every donation, newest first.
func (s *Service) ListDonations(ctx context.Context) ([]models.Donation, error) {
	donations, err := s.records.ListDonations(ctx)
	if err != nil {
		return nil, store.WrapErr(err, "donations")
	}
	slices.SortStableFunc(donations, func(a, b models.Donation) int {
		return b.DonationDate.Compare(a.DonationDate)
	})
	return donations, nil
}
