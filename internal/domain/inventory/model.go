package inventory

import (
	"context"
	"time"

	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/shopspring/decimal"
)

// Item is a stock-keeping unit consumed when packages are packed
type Item struct {
	ID       string          `db:"id" json:"id"`
	SKU      string          `db:"sku" json:"sku"`
	Name     string          `db:"name" json:"name"`
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`
	Unit     string          `db:"unit" json:"unit"`
	types.BaseModel
}

// Movement is one row of the stock ledger
type Movement struct {
	ID        string               `db:"id" json:"id"`
	ItemID    string               `db:"item_id" json:"item_id"`
	PackageID *string              `db:"package_id" json:"package_id"`
	Delta     decimal.Decimal      `db:"delta" json:"delta"`
	Reason    types.MovementReason `db:"reason" json:"reason"`
	Note      *string              `db:"note" json:"note"`
	ActorID   string               `db:"actor_id" json:"actor_id"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}

func NewMovement(ctx context.Context, itemID string, packageID *string, delta decimal.Decimal, reason types.MovementReason, note *string) *Movement {
	return &Movement{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVENTORY_MOVE),
		ItemID:    itemID,
		PackageID: packageID,
		Delta:     delta,
		Reason:    reason,
		Note:      note,
		ActorID:   types.GetActorID(ctx),
		CreatedAt: time.Now().UTC(),
	}
}
