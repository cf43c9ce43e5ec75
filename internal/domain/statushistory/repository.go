package statushistory

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
)

type Repository interface {
	// Create is idempotent on the row id so that retried writes never
	// duplicate history.
	Create(ctx context.Context, h *History) error
	// ListByPackage returns the newest rows first
	ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*History, error)
	DeleteByPackage(ctx context.Context, packageID string) error
}
