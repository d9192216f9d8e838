package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"hemalink/internal/bloodbank/inventory"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
)

// Inventory returns one entry per blood group in canonical order.
func (s *Service) Inventory(ctx context.Context) ([]models.InventoryEntry, error) {
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return nil, store.WrapErr(err, "inventory")
	}
	return entries, nil
}

// AdjustInventory is the manual ledger adjustment. Removing more than the
// stock clamps at zero.
func (s *Service) AdjustInventory(ctx context.Context, bloodGroup string, units int, direction string) (*models.InventoryEntry, error) {
	group, err := models.ParseBloodGroup(bloodGroup)
	if err != nil {
		return nil, err
	}
	return s.ledger.Adjust(ctx, group, units, models.Direction(strings.ToLower(strings.TrimSpace(direction))))
}

// Statistics summarizes every collection. The reads run concurrently and are
// not a consistent snapshot.
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	var (
		donors     []models.Donor
		requestors []models.Requestor
		requests   []models.BloodRequest
		donations  []models.Donation
		stored     []models.InventoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		donors, err = s.records.ListDonors(gctx)
		return err
	})
	g.Go(func() (err error) {
		requestors, err = s.records.ListRequestors(gctx)
		return err
	})
	g.Go(func() (err error) {
		requests, err = s.records.ListRequests(gctx)
		return err
	})
	g.Go(func() (err error) {
		donations, err = s.records.ListDonations(gctx)
		return err
	})
	g.Go(func() (err error) {
		stored, err = s.records.ListInventory(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, store.WrapErr(err, "statistics")
	}

	stats := &models.Statistics{
		TotalDonors:     len(donors),
		TotalRequestors: len(requestors),
		TotalRequests:   len(requests),
		TotalDonations:  len(donations),
		CriticalGroups:  make([]models.BloodGroup, 0),
		Inventory:       inventory.Canonical(stored),
	}
	for _, r := range requests {
		switch r.Status {
		case models.RequestStatusPending:
			stats.ActiveRequests++
		case models.RequestStatusFulfilled:
			stats.FulfilledRequests++
		}
	}
	for _, e := range stats.Inventory {
		stats.TotalUnits += e.Units
		if e.IsCritical() {
			stats.CriticalGroups = append(stats.CriticalGroups, e.BloodGroup)
		}
	}
	return stats, nil
}
