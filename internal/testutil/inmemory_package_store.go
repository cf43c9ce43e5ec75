package testutil

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

// InMemoryPackageStore implements parcel.Repository. Stored packages are
// copied on the way in and out so callers never share state with the store.
type InMemoryPackageStore struct {
	*InMemoryStore[*parcel.Package]
	*Faults
}

func NewInMemoryPackageStore() *InMemoryPackageStore {
	return &InMemoryPackageStore{
		InMemoryStore: NewInMemoryStore[*parcel.Package](),
		Faults:        newFaults(),
	}
}

func copyPackage(p *parcel.Package) *parcel.Package {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func packageFilterFn(ctx context.Context, p *parcel.Package, filter interface{}) bool {
	f, ok := filter.(*types.PackageFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, p.Status) {
		return false
	}
	if len(f.ShortCodes) > 0 && !lo.Contains(f.ShortCodes, p.ShortCode) {
		return false
	}
	if f.DestinationBranchID != "" && lo.FromPtr(p.DestinationBranchID) != f.DestinationBranchID {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && p.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !p.CreatedAt.Before(*f.EndTime) {
			return false
		}
	}
	return true
}

func (s *InMemoryPackageStore) Create(ctx context.Context, p *parcel.Package) error {
	if err := s.hit("create"); err != nil {
		return err
	}
	if _, taken := s.Find(ctx, func(existing *parcel.Package) bool {
		return existing.ShortCode == p.ShortCode
	}); taken {
		return ierr.NewErrorf("short code %s already exists", p.ShortCode).
			WithHint("Short code already in use").
			Mark(ierr.ErrAlreadyExists)
	}
	return s.InMemoryStore.Create(ctx, p.ID, copyPackage(p))
}

func (s *InMemoryPackageStore) Get(ctx context.Context, id string) (*parcel.Package, error) {
	if err := s.hit("get"); err != nil {
		return nil, err
	}
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPackage(p), nil
}

func (s *InMemoryPackageStore) GetByShortCode(ctx context.Context, shortCode string) (*parcel.Package, error) {
	if err := s.hit("get_by_short_code"); err != nil {
		return nil, err
	}
	p, ok := s.Find(ctx, func(p *parcel.Package) bool {
		return p.ShortCode == shortCode
	})
	if !ok {
		return nil, ierr.NewErrorf("package with short_code %s not found", shortCode).
			WithHint("No package matches the scanned code").
			Mark(ierr.ErrNotFound)
	}
	return copyPackage(p), nil
}

func (s *InMemoryPackageStore) List(ctx context.Context, filter *types.PackageFilter) ([]*parcel.Package, error) {
	if err := s.hit("list"); err != nil {
		return nil, err
	}
	items, err := s.InMemoryStore.List(ctx, filter, packageFilterFn, func(a, b *parcel.Package) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *parcel.Package, _ int) *parcel.Package { return copyPackage(p) }), nil
}

func (s *InMemoryPackageStore) Count(ctx context.Context, filter *types.PackageFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, packageFilterFn)
}

func (s *InMemoryPackageStore) UpdateStatus(ctx context.Context, u *parcel.StatusUpdate) (*parcel.Package, error) {
	if err := s.hit("update_status"); err != nil {
		return nil, err
	}
	updated, err := s.Mutate(ctx, u.ID, func(p *parcel.Package) (*parcel.Package, error) {
		if p.Status != u.From {
			return nil, ierr.NewErrorf("package %s is in status %s, expected %s", p.ID, p.Status, u.From).
				WithHintf("Package %s was changed to %s by someone else", p.ShortCode, p.Status).
				Mark(ierr.ErrVersionConflict)
		}
		next := copyPackage(p)
		next.Status = u.To
		if u.Location != nil {
			next.CurrentLocation = u.Location
		}
		next.Version++
		next.UpdatedAt = u.UpdatedAt
		next.UpdatedBy = u.UpdatedBy
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return copyPackage(updated), nil
}

func (s *InMemoryPackageStore) Delete(ctx context.Context, id string) error {
	if err := s.hit("delete"); err != nil {
		return err
	}
	return s.InMemoryStore.Delete(ctx, id)
}

// SetStatus changes a stored status behind the services' back, the way a
// concurrent operator would.
func (s *InMemoryPackageStore) SetStatus(ctx context.Context, id string, status types.PackageStatus) {
	_, _ = s.Mutate(ctx, id, func(p *parcel.Package) (*parcel.Package, error) {
		next := copyPackage(p)
		next.Status = status
		next.Version++
		return next, nil
	})
}

func (s *InMemoryPackageStore) Clear() {
	s.InMemoryStore.Clear()
	s.Faults.Reset()
}
