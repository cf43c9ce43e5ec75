package postgres

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	sentryService "github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
)

const historyColumns = `id, package_id, from_status, to_status, location, actor_id, note, created_at`

type statusHistoryRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewStatusHistoryRepository(db *postgres.DB, logger *logger.Logger) statushistory.Repository {
	return &statusHistoryRepository{db: db, logger: logger}
}

func (r *statusHistoryRepository) Create(ctx context.Context, h *statushistory.History) error {
	span := startSpan(ctx, "status_history", "create", map[string]interface{}{
		"package_id": h.PackageID,
		"to_status":  h.ToStatus,
	})
	defer sentryService.FinishSpan(span)

	query := `INSERT INTO package_status_history (` + historyColumns + `)
	VALUES (:id, :package_id, :from_status, :to_status, :location, :actor_id, :note, :created_at)
	ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, h); err != nil {
		sentryService.SetSpanError(span, err)
		return wrapError(err, "Failed to record status history", map[string]any{
			"history_id": h.ID,
			"package_id": h.PackageID,
		})
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *statusHistoryRepository) ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*statushistory.History, error) {
	query, args := paginate(
		`SELECT `+historyColumns+` FROM package_status_history WHERE package_id = $1`,
		[]interface{}{filter.PackageID},
		"created_at", filter.GetOrder(), filter.GetLimit(), filter.GetOffset(),
		map[string]string{"created_at": "created_at"},
	)

	var rows []*statushistory.History
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapError(err, "Failed to load status history", map[string]any{"package_id": filter.PackageID})
	}
	return rows, nil
}

func (r *statusHistoryRepository) DeleteByPackage(ctx context.Context, packageID string) error {
	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM package_status_history WHERE package_id = $1`, packageID); err != nil {
		return wrapError(err, "Failed to delete status history", map[string]any{"package_id": packageID})
	}
	return nil
}
