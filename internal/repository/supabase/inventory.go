package supabase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nedpals/supabase-go"
	postgrest "github.com/nedpals/supabase-go/postgrest/pkg"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/shopspring/decimal"
)

// adjustAttempts bounds the compare-and-swap loop on a contended item
const adjustAttempts = 5

type inventoryRepository struct {
	client *supabase.Client
	logger *logger.Logger
}

func NewInventoryRepository(client *supabase.Client, logger *logger.Logger) inventory.Repository {
	return &inventoryRepository{client: client, logger: logger}
}

func (r *inventoryRepository) CreateItem(ctx context.Context, item *inventory.Item) error {
	var rows []inventory.Item
	if err := r.client.DB.From(tableItems).Insert(item).Execute(&rows); err != nil {
		return wrapError(err, "Failed to create inventory item", map[string]any{
			"item_id": item.ID,
			"sku":     item.SKU,
		})
	}
	return nil
}

func (r *inventoryRepository) GetItem(ctx context.Context, id string) (*inventory.Item, error) {
	var rows []inventory.Item
	if err := r.client.DB.From(tableItems).Select(selectAll).Eq("id", id).Execute(&rows); err != nil {
		return nil, wrapError(err, "Failed to get inventory item", map[string]any{"item_id": id})
	}
	if len(rows) == 0 {
		return nil, ierr.NewErrorf("inventory item %s not found", id).
			WithHint("Inventory item not found").
			WithReportableDetails(map[string]any{"item_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return &rows[0], nil
}

// itemSortColumns maps the accepted sort keys to columns
var itemSortColumns = map[string]string{
	"name":       "name",
	"sku":        "sku",
	"quantity":   "quantity",
	"created_at": "created_at",
}

func filterItems(q *postgrest.FilterRequestBuilder, filter *types.InventoryItemFilter) *postgrest.FilterRequestBuilder {
	if len(filter.SKUs) > 0 {
		q = q.In("sku", filter.SKUs)
	}
	if filter.Search != "" {
		q = matchAny(q, filter.Search, "name", "sku")
	}
	return q
}

func (r *inventoryRepository) ListItems(ctx context.Context, filter *types.InventoryItemFilter) ([]*inventory.Item, error) {
	column, ok := itemSortColumns[filter.GetSort()]
	if !ok {
		column = "created_at"
	}

	var rows []*inventory.Item
	sel := listRange(r.client.DB.From(tableItems).Select(selectAll),
		filter.GetOrder(), filter.GetLimit(), filter.GetOffset(), column, "id")
	if err := filterItems(&sel.FilterRequestBuilder, filter).ExecuteWithContext(ctx, &rows); err != nil {
		return nil, wrapError(err, "Failed to list inventory items", nil)
	}
	return rows, nil
}

func (r *inventoryRepository) CountItems(ctx context.Context, filter *types.InventoryItemFilter) (int, error) {
	var count int
	sel := r.client.DB.From(tableItems).Select("id").Count()
	if err := filterItems(&sel.FilterRequestBuilder, filter).ExecuteWithContext(ctx, &count); err != nil {
		return 0, wrapError(err, "Failed to count inventory items", nil)
	}
	return count, nil
}

// AdjustQuantity swaps the quantity only while it still holds the value
// read, retrying a few times when another writer got there first.
func (r *inventoryRepository) AdjustQuantity(ctx context.Context, id string, delta decimal.Decimal) (*inventory.Item, error) {
	var result *inventory.Item

	operation := func() error {
		current, err := r.GetItem(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		next := current.Quantity.Add(delta)
		if next.IsNegative() {
			return backoff.Permanent(ierr.NewErrorf("insufficient stock for %s", current.SKU).
				WithHintf("Not enough %s in stock", current.Name).
				WithReportableDetails(map[string]any{
					"item_id":   current.ID,
					"available": current.Quantity.String(),
					"requested": delta.Neg().String(),
				}).
				Mark(ierr.ErrInvalidOperation))
		}

		updatedAt := time.Now().UTC().Truncate(time.Microsecond)
		var rows []inventory.Item
		err = r.client.DB.From(tableItems).
			Update(map[string]interface{}{
				"quantity":   next,
				"updated_at": updatedAt,
				"updated_by": types.GetActorID(ctx),
			}).
			Eq("id", id).
			Eq("quantity", current.Quantity.String()).
			ExecuteWithContext(ctx, &rows)
		if err != nil {
			return backoff.Permanent(wrapError(err, "Failed to adjust stock", map[string]any{"item_id": id}))
		}
		if len(rows) != 1 {
			return ierr.NewError("stock changed concurrently").Mark(ierr.ErrVersionConflict)
		}
		result = &rows[0]
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), adjustAttempts),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *inventoryRepository) CreateMovement(ctx context.Context, m *inventory.Movement) error {
	var rows []inventory.Movement
	if err := r.client.DB.From(tableMovements).Insert(m).Execute(&rows); err != nil {
		wrapped := wrapError(err, "Failed to record stock movement", map[string]any{
			"movement_id": m.ID,
			"item_id":     m.ItemID,
		})
		if ierr.IsAlreadyExists(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

func (r *inventoryRepository) ListMovements(ctx context.Context, itemID string, filter *types.QueryFilter) ([]*inventory.Movement, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	var rows []*inventory.Movement
	sel := listRange(r.client.DB.From(tableMovements).Select(selectAll),
		filter.GetOrder(), filter.GetLimit(), filter.GetOffset(), "created_at", "id")
	if err := sel.Eq("item_id", itemID).ExecuteWithContext(ctx, &rows); err != nil {
		return nil, wrapError(err, "Failed to list stock movements", map[string]any{"item_id": itemID})
	}
	return rows, nil
}
