package supabase

import (
	"context"

	"github.com/nedpals/supabase-go"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
)

type scanRepository struct {
	client *supabase.Client
	logger *logger.Logger
}

func NewScanRepository(client *supabase.Client, logger *logger.Logger) scanlog.Repository {
	return &scanRepository{client: client, logger: logger}
}

func (r *scanRepository) Create(ctx context.Context, s *scanlog.Scan) error {
	var rows []scanlog.Scan
	if err := r.client.DB.From(tableScans).Insert(s).Execute(&rows); err != nil {
		wrapped := wrapError(err, "Failed to record scan", map[string]any{
			"scan_id":    s.ID,
			"package_id": s.PackageID,
		})
		if ierr.IsAlreadyExists(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

func (r *scanRepository) ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*scanlog.Scan, error) {
	var rows []*scanlog.Scan
	sel := listRange(r.client.DB.From(tableScans).Select(selectAll),
		filter.GetOrder(), filter.GetLimit(), filter.GetOffset(), "created_at", "id")
	if err := sel.Eq("package_id", filter.PackageID).ExecuteWithContext(ctx, &rows); err != nil {
		return nil, wrapError(err, "Failed to load scans", map[string]any{"package_id": filter.PackageID})
	}
	return rows, nil
}

func (r *scanRepository) DeleteByPackage(ctx context.Context, packageID string) error {
	var rows []scanlog.Scan
	if err := r.client.DB.From(tableScans).Delete().Eq("package_id", packageID).Execute(&rows); err != nil {
		return wrapError(err, "Failed to delete scans", map[string]any{"package_id": packageID})
	}
	return nil
}
