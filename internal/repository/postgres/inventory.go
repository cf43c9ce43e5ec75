package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	sentryService "github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/shopspring/decimal"
)

const (
	itemColumns     = `id, sku, name, quantity, unit, created_at, updated_at, created_by, updated_by`
	movementColumns = `id, item_id, package_id, delta, reason, note, actor_id, created_at`
)

var itemSortable = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"sku":        "sku",
	"quantity":   "quantity",
}

type inventoryRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInventoryRepository(db *postgres.DB, logger *logger.Logger) inventory.Repository {
	return &inventoryRepository{db: db, logger: logger}
}

func (r *inventoryRepository) CreateItem(ctx context.Context, item *inventory.Item) error {
	query := `INSERT INTO inventory_items (` + itemColumns + `)
	VALUES (:id, :sku, :name, :quantity, :unit, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, item); err != nil {
		return wrapError(err, "Failed to create inventory item", map[string]any{
			"item_id": item.ID,
			"sku":     item.SKU,
		})
	}
	return nil
}

func (r *inventoryRepository) GetItem(ctx context.Context, id string) (*inventory.Item, error) {
	var item inventory.Item
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, itemNotFound(id)
		}
		return nil, wrapError(err, "Failed to get inventory item", map[string]any{"item_id": id})
	}
	return &item, nil
}

func (r *inventoryRepository) ListItems(ctx context.Context, filter *types.InventoryItemFilter) ([]*inventory.Item, error) {
	where, args := itemWhere(filter)
	query, args := paginate(
		`SELECT `+itemColumns+` FROM inventory_items`+where,
		args,
		filter.GetSort(), filter.GetOrder(), filter.GetLimit(), filter.GetOffset(),
		itemSortable,
	)

	var items []*inventory.Item
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, wrapError(err, "Failed to list inventory items", nil)
	}
	return items, nil
}

func (r *inventoryRepository) CountItems(ctx context.Context, filter *types.InventoryItemFilter) (int, error) {
	where, args := itemWhere(filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM inventory_items`+where, args...); err != nil {
		return 0, wrapError(err, "Failed to count inventory items", nil)
	}
	return count, nil
}

func (r *inventoryRepository) AdjustQuantity(ctx context.Context, id string, delta decimal.Decimal) (*inventory.Item, error) {
	span := startSpan(ctx, "inventory", "adjust_quantity", map[string]interface{}{
		"item_id": id,
		"delta":   delta.String(),
	})
	defer sentryService.FinishSpan(span)

	query := `UPDATE inventory_items
	SET quantity = quantity + $1, updated_at = $2, updated_by = $3
	WHERE id = $4 AND quantity + $1 >= 0
	RETURNING ` + itemColumns

	var item inventory.Item
	err := r.db.GetQuerier(ctx).GetContext(ctx, &item, query,
		delta, time.Now().UTC(), types.GetActorID(ctx), id,
	)
	if err == nil {
		sentryService.SetSpanSuccess(span)
		return &item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		sentryService.SetSpanError(span, err)
		return nil, wrapError(err, "Failed to adjust stock", map[string]any{"item_id": id})
	}

	current, getErr := r.GetItem(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, insufficientStock(current, delta)
}

func (r *inventoryRepository) CreateMovement(ctx context.Context, m *inventory.Movement) error {
	query := `INSERT INTO inventory_movements (` + movementColumns + `)
	VALUES (:id, :item_id, :package_id, :delta, :reason, :note, :actor_id, :created_at)
	ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, m); err != nil {
		return wrapError(err, "Failed to record stock movement", map[string]any{
			"movement_id": m.ID,
			"item_id":     m.ItemID,
		})
	}
	return nil
}

func (r *inventoryRepository) ListMovements(ctx context.Context, itemID string, filter *types.QueryFilter) ([]*inventory.Movement, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	query, args := paginate(
		`SELECT `+movementColumns+` FROM inventory_movements WHERE item_id = $1`,
		[]interface{}{itemID},
		"created_at", filter.GetOrder(), filter.GetLimit(), filter.GetOffset(),
		map[string]string{"created_at": "created_at"},
	)

	var rows []*inventory.Movement
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapError(err, "Failed to list stock movements", map[string]any{"item_id": itemID})
	}
	return rows, nil
}

func itemNotFound(id string) error {
	return ierr.NewErrorf("inventory item %s not found", id).
		WithHint("Inventory item not found").
		WithReportableDetails(map[string]any{"item_id": id}).
		Mark(ierr.ErrNotFound)
}

func insufficientStock(item *inventory.Item, delta decimal.Decimal) error {
	return ierr.NewErrorf("insufficient stock for %s", item.SKU).
		WithHintf("Not enough %s in stock", item.Name).
		WithReportableDetails(map[string]any{
			"item_id":   item.ID,
			"available": item.Quantity.String(),
			"requested": delta.Neg().String(),
		}).
		Mark(ierr.ErrInvalidOperation)
}

func itemWhere(filter *types.InventoryItemFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter == nil {
		return "", nil
	}
	if len(filter.SKUs) > 0 {
		args = append(args, pq.Array(filter.SKUs))
		conds = append(conds, "sku = ANY("+placeholder(len(args))+")")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, "(name ILIKE "+placeholder(len(args))+" OR sku ILIKE "+placeholder(len(args))+")")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
