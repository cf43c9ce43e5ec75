package parcel

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
)

// Repository defines the interface for package persistence
type Repository interface {
	Create(ctx context.Context, pkg *Package) error
	Get(ctx context.Context, id string) (*Package, error)
	// GetByShortCode is a case-sensitive exact match
	GetByShortCode(ctx context.Context, shortCode string) (*Package, error)
	List(ctx context.Context, filter *types.PackageFilter) ([]*Package, error)
	Count(ctx context.Context, filter *types.PackageFilter) (int, error)
	// UpdateStatus returns ErrVersionConflict when the stored status no
	// longer matches update.From and ErrNotFound when the package is gone.
	UpdateStatus(ctx context.Context, update *StatusUpdate) (*Package, error)
	Delete(ctx context.Context, id string) error
}
