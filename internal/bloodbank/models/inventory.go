package models

import "time"

// CriticalStockThreshold marks a group as critical when stock falls below it.
const CriticalStockThreshold = 20

// Direction selects whether an adjustment credits or debits stock.
type Direction string

const (
	DirectionAdd    Direction = "add"
	DirectionRemove Direction = "remove"
)

func (d Direction) IsValid() bool {
	return d == DirectionAdd || d == DirectionRemove
}

// InventoryEntry is the stock held for one blood group.
//
// Invariants:
//   - Units is never negative; removals clamp at zero
//   - Donors is a set (no duplicates) used for display only
type InventoryEntry struct {
	BloodGroup BloodGroup `json:"blood_group"`
	Units      int        `json:"units"`
	Donors     []string   `json:"donors"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewInventoryEntry returns an empty entry for group.
func NewInventoryEntry(group BloodGroup) *InventoryEntry {
	return &InventoryEntry{BloodGroup: group, Donors: []string{}}
}

// Apply adjusts stock by units in direction and reports the units actually
// moved. A removal larger than the stock truncates to zero.
func (e *InventoryEntry) Apply(units int, direction Direction, now time.Time) int {
	moved := units
	switch direction {
	case DirectionAdd:
		e.Units += units
	case DirectionRemove:
		if moved > e.Units {
			moved = e.Units
		}
		e.Units -= moved
	}
	e.UpdatedAt = now
	return moved
}

// AddDonor records donorID once.
func (e *InventoryEntry) AddDonor(donorID string) {
	for _, id := range e.Donors {
		if id == donorID {
			return
		}
	}
	e.Donors = append(e.Donors, donorID)
}

// IsCritical reports whether stock is below CriticalStockThreshold.
func (e *InventoryEntry) IsCritical() bool {
	return e.Units < CriticalStockThreshold
}
