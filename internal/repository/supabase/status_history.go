package supabase

import (
	"context"

	"github.com/nedpals/supabase-go"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
)

type statusHistoryRepository struct {
	client *supabase.Client
	logger *logger.Logger
}

func NewStatusHistoryRepository(client *supabase.Client, logger *logger.Logger) statushistory.Repository {
	return &statusHistoryRepository{client: client, logger: logger}
}

// Create treats a duplicate id as success so that retried writes stay
// idempotent.
func (r *statusHistoryRepository) Create(ctx context.Context, h *statushistory.History) error {
	var rows []statushistory.History
	if err := r.client.DB.From(tableHistory).Insert(h).Execute(&rows); err != nil {
		wrapped := wrapError(err, "Failed to record status history", map[string]any{
			"history_id": h.ID,
			"package_id": h.PackageID,
		})
		if ierr.IsAlreadyExists(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

func (r *statusHistoryRepository) ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*statushistory.History, error) {
	var rows []*statushistory.History
	sel := listRange(r.client.DB.From(tableHistory).Select(selectAll),
		filter.GetOrder(), filter.GetLimit(), filter.GetOffset(), "created_at", "id")
	if err := sel.Eq("package_id", filter.PackageID).ExecuteWithContext(ctx, &rows); err != nil {
		return nil, wrapError(err, "Failed to load status history", map[string]any{"package_id": filter.PackageID})
	}
	return rows, nil
}

func (r *statusHistoryRepository) DeleteByPackage(ctx context.Context, packageID string) error {
	var rows []statushistory.History
	if err := r.client.DB.From(tableHistory).Delete().Eq("package_id", packageID).Execute(&rows); err != nil {
		return wrapError(err, "Failed to delete status history", map[string]any{"package_id": packageID})
	}
	return nil
}
