package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InMemoryInventoryStore implements inventory.Repository
type InMemoryInventoryStore struct {
	items     *InMemoryStore[*inventory.Item]
	movements *InMemoryStore[*inventory.Movement]
	*Faults
}

func NewInMemoryInventoryStore() *InMemoryInventoryStore {
	return &InMemoryInventoryStore{
		items:     NewInMemoryStore[*inventory.Item](),
		movements: NewInMemoryStore[*inventory.Movement](),
		Faults:    newFaults(),
	}
}

func itemFilterFn(ctx context.Context, item *inventory.Item, filter interface{}) bool {
	f, ok := filter.(*types.InventoryItemFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.SKUs) > 0 && !lo.Contains(f.SKUs, item.SKU) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func (s *InMemoryInventoryStore) CreateItem(ctx context.Context, item *inventory.Item) error {
	if err := s.hit("create_item"); err != nil {
		return err
	}
	if _, taken := s.items.Find(ctx, func(existing *inventory.Item) bool { return existing.SKU == item.SKU }); taken {
		return ierr.NewErrorf("sku %s already exists", item.SKU).
			WithHint("An item with this SKU already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *item
	return s.items.Create(ctx, item.ID, &cp)
}

func (s *InMemoryInventoryStore) GetItem(ctx context.Context, id string) (*inventory.Item, error) {
	if err := s.hit("get_item"); err != nil {
		return nil, err
	}
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *item
	return &cp, nil
}

func (s *InMemoryInventoryStore) ListItems(ctx context.Context, filter *types.InventoryItemFilter) ([]*inventory.Item, error) {
	return s.items.List(ctx, filter, itemFilterFn, func(a, b *inventory.Item) bool {
		return a.Name < b.Name
	})
}

func (s *InMemoryInventoryStore) CountItems(ctx context.Context, filter *types.InventoryItemFilter) (int, error) {
	return s.items.Count(ctx, filter, itemFilterFn)
}

func (s *InMemoryInventoryStore) AdjustQuantity(ctx context.Context, id string, delta decimal.Decimal) (*inventory.Item, error) {
	if err := s.hit("adjust"); err != nil {
		return nil, err
	}
	updated, err := s.items.Mutate(ctx, id, func(item *inventory.Item) (*inventory.Item, error) {
		next := item.Quantity.Add(delta)
		if next.IsNegative() {
			return nil, ierr.NewErrorf("item %s would go to %s", item.ID, next).
				WithHintf("Not enough %s in stock", item.Name).
				Mark(ierr.ErrInvalidOperation)
		}
		cp := *item
		cp.Quantity = next
		cp.UpdatedAt = time.Now().UTC()
		return &cp, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *updated
	return &cp, nil
}

func (s *InMemoryInventoryStore) CreateMovement(ctx context.Context, m *inventory.Movement) error {
	if err := s.hit("create_movement"); err != nil {
		return err
	}
	cp := *m
	return s.movements.Create(ctx, m.ID, &cp)
}

func (s *InMemoryInventoryStore) ListMovements(ctx context.Context, itemID string, filter *types.QueryFilter) ([]*inventory.Movement, error) {
	var f interface{}
	if filter != nil {
		f = filter
	}
	return s.movements.List(ctx, f,
		func(_ context.Context, m *inventory.Movement, _ interface{}) bool { return m.ItemID == itemID },
		func(a, b *inventory.Movement) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
}

// Movements returns every recorded movement of itemID
func (s *InMemoryInventoryStore) Movements(ctx context.Context, itemID string) []*inventory.Movement {
	movements, _ := s.ListMovements(ctx, itemID, nil)
	return movements
}

func (s *InMemoryInventoryStore) Clear() {
	s.items.Clear()
	s.movements.Clear()
	s.Faults.Reset()
}
