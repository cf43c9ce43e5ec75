package dto

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateInventoryItemRequest struct {
	SKU      string          `json:"sku" validate:"required,max=64"`
	Name     string          `json:"name" validate:"required,max=255"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"omitempty,max=32"`
}

func (r *CreateInventoryItemRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Quantity.IsNegative() {
		return ierr.NewError("negative opening quantity").
			WithHint("Quantity cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *CreateInventoryItemRequest) ToItem(ctx context.Context) *inventory.Item {
	unit := r.Unit
	if unit == "" {
		unit = "pcs"
	}
	return &inventory.Item{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVENTORY_ITEM),
		SKU:       r.SKU,
		Name:      r.Name,
		Quantity:  r.Quantity,
		Unit:      unit,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

type AdjustInventoryRequest struct {
	Delta  decimal.Decimal      `json:"delta"`
	Reason types.MovementReason `json:"reason" validate:"required,oneof=adjustment restock"`
	Note   *string              `json:"note" validate:"omitempty,max=1000"`
}

func (r *AdjustInventoryRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Delta.IsZero() {
		return ierr.NewError("zero adjustment").
			WithHint("Adjustment must change the quantity").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type InventoryItemResponse struct {
	*inventory.Item
	Movements []*inventory.Movement `json:"movements,omitempty"`
}

type ListInventoryItemsResponse = types.ListResponse[*InventoryItemResponse]
