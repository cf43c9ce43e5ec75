package inventory

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/shopspring/decimal"
)

type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context, filter *types.InventoryItemFilter) ([]*Item, error)
	CountItems(ctx context.Context, filter *types.InventoryItemFilter) (int, error)
	// AdjustQuantity adds delta to the stock count. A change that would take
	// the count below zero fails with ErrInvalidOperation.
	AdjustQuantity(ctx context.Context, id string, delta decimal.Decimal) (*Item, error)
	CreateMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, itemID string, filter *types.QueryFilter) ([]*Movement, error)
}
