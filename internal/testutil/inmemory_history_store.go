package testutil

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/types"
)

// InMemoryHistoryStore implements statushistory.Repository
type InMemoryHistoryStore struct {
	*InMemoryStore[*statushistory.History]
	*Faults
}

func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		InMemoryStore: NewInMemoryStore[*statushistory.History](),
		Faults:        newFaults(),
	}
}

func (s *InMemoryHistoryStore) Create(ctx context.Context, h *statushistory.History) error {
	if err := s.hit("create"); err != nil {
		return err
	}
	if _, err := s.InMemoryStore.Get(ctx, h.ID); err == nil {
		return nil
	}
	cp := *h
	return s.InMemoryStore.Create(ctx, h.ID, &cp)
}

func (s *InMemoryHistoryStore) ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*statushistory.History, error) {
	if err := s.hit("list"); err != nil {
		return nil, err
	}
	return s.InMemoryStore.List(ctx, filter,
		func(_ context.Context, h *statushistory.History, _ interface{}) bool {
			return h.PackageID == filter.PackageID
		},
		func(a, b *statushistory.History) bool {
			return a.CreatedAt.After(b.CreatedAt)
		},
	)
}

func (s *InMemoryHistoryStore) DeleteByPackage(ctx context.Context, packageID string) error {
	if err := s.hit("delete"); err != nil {
		return err
	}
	s.DeleteWhere(ctx, func(h *statushistory.History) bool { return h.PackageID == packageID })
	return nil
}

func (s *InMemoryHistoryStore) Clear() {
	s.InMemoryStore.Clear()
	s.Faults.Reset()
}

// InMemoryScanStore implements scanlog.Repository
type InMemoryScanStore struct {
	*InMemoryStore[*scanlog.Scan]
	*Faults
}

func NewInMemoryScanStore() *InMemoryScanStore {
	return &InMemoryScanStore{
		InMemoryStore: NewInMemoryStore[*scanlog.Scan](),
		Faults:        newFaults(),
	}
}

func (s *InMemoryScanStore) Create(ctx context.Context, scan *scanlog.Scan) error {
	if err := s.hit("create"); err != nil {
		return err
	}
	if _, err := s.InMemoryStore.Get(ctx, scan.ID); err == nil {
		return nil
	}
	cp := *scan
	return s.InMemoryStore.Create(ctx, scan.ID, &cp)
}

func (s *InMemoryScanStore) ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*scanlog.Scan, error) {
	if err := s.hit("list"); err != nil {
		return nil, err
	}
	return s.InMemoryStore.List(ctx, filter,
		func(_ context.Context, scan *scanlog.Scan, _ interface{}) bool {
			return scan.PackageID == filter.PackageID
		},
		func(a, b *scanlog.Scan) bool {
			return a.CreatedAt.After(b.CreatedAt)
		},
	)
}

func (s *InMemoryScanStore) DeleteByPackage(ctx context.Context, packageID string) error {
	if err := s.hit("delete"); err != nil {
		return err
	}
	s.DeleteWhere(ctx, func(scan *scanlog.Scan) bool { return scan.PackageID == packageID })
	return nil
}

func (s *InMemoryScanStore) Clear() {
	s.InMemoryStore.Clear()
	s.Faults.Reset()
}
