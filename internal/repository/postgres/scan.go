package postgres

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	sentryService "github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
)

const scanColumns = `id, package_id, raw_payload, format, mode, actor_id, created_at`

type scanRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewScanRepository(db *postgres.DB, logger *logger.Logger) scanlog.Repository {
	return &scanRepository{db: db, logger: logger}
}

func (r *scanRepository) Create(ctx context.Context, s *scanlog.Scan) error {
	span := startSpan(ctx, "scan", "create", map[string]interface{}{
		"package_id": s.PackageID,
	})
	defer sentryService.FinishSpan(span)

	query := `INSERT INTO scans (` + scanColumns + `)
	VALUES (:id, :package_id, :raw_payload, :format, :mode, :actor_id, :created_at)
	ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s); err != nil {
		sentryService.SetSpanError(span, err)
		return wrapError(err, "Failed to record scan", map[string]any{
			"scan_id":    s.ID,
			"package_id": s.PackageID,
		})
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *scanRepository) ListByPackage(ctx context.Context, filter *types.HistoryFilter) ([]*scanlog.Scan, error) {
	query, args := paginate(
		`SELECT `+scanColumns+` FROM scans WHERE package_id = $1`,
		[]interface{}{filter.PackageID},
		"created_at", filter.GetOrder(), filter.GetLimit(), filter.GetOffset(),
		map[string]string{"created_at": "created_at"},
	)

	var rows []*scanlog.Scan
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapError(err, "Failed to load scans", map[string]any{"package_id": filter.PackageID})
	}
	return rows, nil
}

func (r *scanRepository) DeleteByPackage(ctx context.Context, packageID string) error {
	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM scans WHERE package_id = $1`, packageID); err != nil {
		return wrapError(err, "Failed to delete scans", map[string]any{"package_id": packageID})
	}
	return nil
}
