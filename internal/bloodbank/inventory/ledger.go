// Package inventory keeps the per blood group unit counter.
//
// Every read-modify-write runs inside storage.Tx holding the group's key, so
// concurrent adjustments to one group serialize and no update is lost.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hemalink/internal/bloodbank/metrics"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/platform/sentinel"
	"hemalink/pkg/requestcontext"
)

// Ledger reads through a guarded store and writes through transactions on
// the raw backend.
type Ledger struct {
	tx      storage.Tx
	reads   *store.Records
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// New builds a ledger. reads is normally bound to a storage.Guard.
func New(tx storage.Tx, reads *store.Records, opts ...Option) *Ledger {
	l := &Ledger{tx: tx, reads: reads}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// Get returns the units in stock for group; a group with no entry has zero.
func (l *Ledger) Get(ctx context.Context, group models.BloodGroup) (int, error) {
	entry, err := l.Entry(ctx, group)
	if err != nil {
		return 0, err
	}
	return entry.Units, nil
}

// Entry returns the stored entry for group, or an empty one.
func (l *Ledger) Entry(ctx context.Context, group models.BloodGroup) (*models.InventoryEntry, error) {
	entry, err := l.reads.GetInventory(ctx, group)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewInventoryEntry(group), nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns one entry per blood group in canonical order, filling groups
// that have no stored entry with empty ones.
func (l *Ledger) List(ctx context.Context) ([]models.InventoryEntry, error) {
	stored, err := l.reads.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	return Canonical(stored), nil
}

// Canonical orders entries by models.BloodGroups and fills the gaps.
func Canonical(stored []models.InventoryEntry) []models.InventoryEntry {
	byGroup := make(map[models.BloodGroup]models.InventoryEntry, len(stored))
	for _, e := range stored {
		byGroup[e.BloodGroup] = e
	}
	out := make([]models.InventoryEntry, 0, len(models.BloodGroups))
	for _, g := range models.BloodGroups {
		if e, ok := byGroup[g]; ok {
			out = append(out, e)
			continue
		}
		out = append(out, *models.NewInventoryEntry(g))
	}
	return out
}

// Adjust moves units in direction for group. Removing more than the stock
// clamps at zero. A group with no entry starts from zero.
func (l *Ledger) Adjust(ctx context.Context, group models.BloodGroup, units int, direction models.Direction) (*models.InventoryEntry, error) {
	if err := validateAdjustment(group, units, direction); err != nil {
		return nil, err
	}
	var result *models.InventoryEntry
	err := l.tx.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		entry, _, err := Apply(ctx, store.New(rs), group, units, direction, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		result = entry
		return nil
	}, store.InventoryKey(group))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "adjust inventory")
	}
	l.metrics.IncrementInventoryAdjustment(group.String(), string(direction))
	l.logger.InfoContext(ctx, "inventory adjusted",
		"blood_group", group.String(),
		"direction", string(direction),
		"units", units,
		"stock", result.Units,
	)
	return result, nil
}

// RegisterDonor adds donorID to the donor set of group.
func (l *Ledger) RegisterDonor(ctx context.Context, group models.BloodGroup, donorID string) error {
	return l.tx.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		return AddDonor(ctx, store.New(rs), group, donorID, requestcontext.Now(ctx))
	}, store.InventoryKey(group))
}

func validateAdjustment(group models.BloodGroup, units int, direction models.Direction) error {
	if !group.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown blood group "+group.String())
	}
	if units < 0 {
		return dErrors.New(dErrors.CodeValidation, "units must not be negative")
	}
	if !direction.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "direction must be add or remove")
	}
	return nil
}

// Apply is the transactional body of Adjust, for callers that already hold
// the inventory key inside their own transaction. It returns the updated
// entry and the units actually moved.
func Apply(ctx context.Context, recs *store.Records, group models.BloodGroup, units int, direction models.Direction, now time.Time) (*models.InventoryEntry, int, error) {
	if err := validateAdjustment(group, units, direction); err != nil {
		return nil, 0, err
	}
	entry, err := load(ctx, recs, group)
	if err != nil {
		return nil, 0, err
	}
	moved := entry.Apply(units, direction, now)
	if err := recs.PutInventory(ctx, entry); err != nil {
		return nil, 0, err
	}
	return entry, moved, nil
}

// AddDonor is the transactional body of RegisterDonor.
func AddDonor(ctx context.Context, recs *store.Records, group models.BloodGroup, donorID string, now time.Time) error {
	entry, err := load(ctx, recs, group)
	if err != nil {
		return err
	}
	entry.AddDonor(donorID)
	entry.UpdatedAt = now
	return recs.PutInventory(ctx, entry)
}

func load(ctx context.Context, recs *store.Records, group models.BloodGroup) (*models.InventoryEntry, error) {
	entry, err := recs.GetInventory(ctx, group)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.NewInventoryEntry(group), nil
	}
	return entry, err
}
