package scanlog

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
)

type Repository interface {
	// Create is idempotent on the row id
	Create(ctx context.Context, s *Scan) error
	ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*Scan, error)
	DeleteByPackage(ctx context.Context, packageID string) error
}
