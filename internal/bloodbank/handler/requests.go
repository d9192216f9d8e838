package handler

import (
	dErrors "hemalink/pkg/domain-errors"
)

// FulfillRequest is the body of POST /requests/{id}/fulfill.
type FulfillRequest struct {
	UnitsFulfilled int `json:"units_fulfilled"`
}

func (r *FulfillRequest) Validate() error {
	if r.UnitsFulfilled < 0 {
		return dErrors.New(dErrors.CodeValidation, "units_fulfilled must not be negative")
	}
	return nil
}

// AdjustInventoryRequest is the body of POST /inventory/{group}/adjust.
type AdjustInventoryRequest struct {
	Units     int    `json:"units"`
	Direction string `json:"direction"`
}

func (r *AdjustInventoryRequest) Validate() error {
	if r.Units < 0 {
		return dErrors.New(dErrors.CodeValidation, "units must not be negative")
	}
	if r.Direction == "" {
		return dErrors.New(dErrors.CodeValidation, "direction is required")
	}
	return nil
}
