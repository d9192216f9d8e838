// Package store is the typed repository over storage.RecordStore. It owns the
// JSON codec; callers only see domain models.
//
// Records is bound to one RecordStore. Read paths bind it to a
// storage.Guard, transactional paths to the store handed to RunInTx.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hemalink/internal/bloodbank/models"
	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/platform/sentinel"
)

// Records reads and writes domain models.
type Records struct {
	rs storage.RecordStore
}

func New(rs storage.RecordStore) *Records {
	return &Records{rs: rs}
}

// InventoryKey addresses the inventory entry of group.
func InventoryKey(group models.BloodGroup) storage.Key {
	return storage.KeyOf(storage.Inventory, group.String())
}

func DonorKey(id string) storage.Key     { return storage.KeyOf(storage.Donors, id) }
func RequestorKey(id string) storage.Key { return storage.KeyOf(storage.Requestors, id) }
func RequestKey(id string) storage.Key   { return storage.KeyOf(storage.Requests, id) }
func DonationKey(id string) storage.Key  { return storage.KeyOf(storage.Donations, id) }

func put(ctx context.Context, rs storage.RecordStore, k storage.Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	return rs.Put(ctx, k.Collection, k.ID, data)
}

func get[T any](ctx context.Context, rs storage.RecordStore, k storage.Key) (*T, error) {
	data, err := rs.Get(ctx, k.Collection, k.ID)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", k, err)
	}
	return &v, nil
}

func list[T any](ctx context.Context, rs storage.RecordStore, c storage.Collection) ([]T, error) {
	docs, err := rs.Scan(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for i, data := range docs {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s record %d: %w", c, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Records) PutDonor(ctx context.Context, d *models.Donor) error {
	return put(ctx, r.rs, DonorKey(d.ID), d)
}

func (r *Records) GetDonor(ctx context.Context, id string) (*models.Donor, error) {
	return get[models.Donor](ctx, r.rs, DonorKey(id))
}

func (r *Records) ListDonors(ctx context.Context) ([]models.Donor, error) {
	return list[models.Donor](ctx, r.rs, storage.Donors)
}

func (r *Records) PutRequestor(ctx context.Context, q *models.Requestor) error {
	return put(ctx, r.rs, RequestorKey(q.ID), q)
}

func (r *Records) GetRequestor(ctx context.Context, id string) (*models.Requestor, error) {
	return get[models.Requestor](ctx, r.rs, RequestorKey(id))
}

func (r *Records) ListRequestors(ctx context.Context) ([]models.Requestor, error) {
	return list[models.Requestor](ctx, r.rs, storage.Requestors)
}

func (r *Records) PutRequest(ctx context.Context, req *models.BloodRequest) error {
	return put(ctx, r.rs, RequestKey(req.ID), req)
}

func (r *Records) GetRequest(ctx context.Context, id string) (*models.BloodRequest, error) {
	return get[models.BloodRequest](ctx, r.rs, RequestKey(id))
}

func (r *Records) ListRequests(ctx context.Context) ([]models.BloodRequest, error) {
	return list[models.BloodRequest](ctx, r.rs, storage.Requests)
}

func (r *Records) PutDonation(ctx context.Context, d *models.Donation) error {
	return put(ctx, r.rs, DonationKey(d.ID), d)
}

func (r *Records) ListDonations(ctx context.Context) ([]models.Donation, error) {
	return list[models.Donation](ctx, r.rs, storage.Donations)
}

func (r *Records) PutInventory(ctx context.Context, e *models.InventoryEntry) error {
	return put(ctx, r.rs, InventoryKey(e.BloodGroup), e)
}

func (r *Records) GetInventory(ctx context.Context, group models.BloodGroup) (*models.InventoryEntry, error) {
	return get[models.InventoryEntry](ctx, r.rs, InventoryKey(group))
}

func (r *Records) ListInventory(ctx context.Context) ([]models.InventoryEntry, error) {
	return list[models.InventoryEntry](ctx, r.rs, storage.Inventory)
}

// WrapErr translates a repository error into a coded domain error. Coded
// errors pass through unchanged.
func WrapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
}
