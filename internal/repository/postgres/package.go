package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
	sentryService "github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

const packageColumns = `id, short_code, contents_note, status, current_location, origin,
	destination_branch_id, version, created_at, updated_at, created_by, updated_by`

var packageSortable = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"short_code": "short_code",
	"status":     "status",
}

type packageRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPackageRepository(db *postgres.DB, logger *logger.Logger) parcel.Repository {
	return &packageRepository{db: db, logger: logger}
}

func (r *packageRepository) Create(ctx context.Context, p *parcel.Package) error {
	span := startSpan(ctx, "package", "create", map[string]interface{}{
		"package_id": p.ID,
		"short_code": p.ShortCode,
	})
	defer sentryService.FinishSpan(span)

	query := `INSERT INTO packages (` + packageColumns + `)
	VALUES (:id, :short_code, :contents_note, :status, :current_location, :origin,
		:destination_branch_id, :version, :created_at, :updated_at, :created_by, :updated_by)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p); err != nil {
		sentryService.SetSpanError(span, err)
		return wrapError(err, "Failed to create package", map[string]any{
			"package_id": p.ID,
			"short_code": p.ShortCode,
		})
	}

	sentryService.SetSpanSuccess(span)
	return nil
}

func (r *packageRepository) Get(ctx context.Context, id string) (*parcel.Package, error) {
	span := startSpan(ctx, "package", "get", map[string]interface{}{
		"package_id": id,
	})
	defer sentryService.FinishSpan(span)

	// a value that is not a UUID can never match the primary key
	if !types.IsUUID(id) {
		return nil, packageNotFound("id", id)
	}

	var p parcel.Package
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, packageNotFound("id", id)
		}
		sentryService.SetSpanError(span, err)
		return nil, wrapError(err, "Failed to get package", map[string]any{"package_id": id})
	}

	sentryService.SetSpanSuccess(span)
	return &p, nil
}

func (r *packageRepository) GetByShortCode(ctx context.Context, shortCode string) (*parcel.Package, error) {
	span := startSpan(ctx, "package", "get_by_short_code", map[string]interface{}{
		"short_code": shortCode,
	})
	defer sentryService.FinishSpan(span)

	var p parcel.Package
	query := `SELECT ` + packageColumns + ` FROM packages WHERE short_code = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, packageNotFound("short_code", shortCode)
		}
		sentryService.SetSpanError(span, err)
		return nil, wrapError(err, "Failed to look up package", map[string]any{"short_code": shortCode})
	}

	sentryService.SetSpanSuccess(span)
	return &p, nil
}

func (r *packageRepository) List(ctx context.Context, filter *types.PackageFilter) ([]*parcel.Package, error) {
	span := startSpan(ctx, "package", "list", nil)
	defer sentryService.FinishSpan(span)

	where, args := packageWhere(filter)
	query, args := paginate(
		`SELECT `+packageColumns+` FROM packages`+where,
		args,
		filter.GetSort(), filter.GetOrder(), filter.GetLimit(), filter.GetOffset(),
		packageSortable,
	)

	var packages []*parcel.Package
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &packages, query, args...); err != nil {
		sentryService.SetSpanError(span, err)
		return nil, wrapError(err, "Failed to list packages", nil)
	}

	sentryService.SetSpanSuccess(span)
	return packages, nil
}

func (r *packageRepository) Count(ctx context.Context, filter *types.PackageFilter) (int, error) {
	where, args := packageWhere(filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM packages`+where, args...); err != nil {
		return 0, wrapError(err, "Failed to count packages", nil)
	}
	return count, nil
}

func (r *packageRepository) UpdateStatus(ctx context.Context, u *parcel.StatusUpdate) (*parcel.Package, error) {
	span := startSpan(ctx, "package", "update_status", map[string]interface{}{
		"package_id": u.ID,
		"from":       u.From,
		"to":         u.To,
	})
	defer sentryService.FinishSpan(span)

	if !types.IsUUID(u.ID) {
		return nil, packageNotFound("id", u.ID)
	}

	query := `UPDATE packages
	SET status = $1,
		current_location = COALESCE($2, current_location),
		version = version + 1,
		updated_at = $3,
		updated_by = $4
	WHERE id = $5 AND status = $6
	RETURNING ` + packageColumns

	var p parcel.Package
	err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query,
		u.To, u.Location, u.UpdatedAt, u.UpdatedBy, u.ID, u.From,
	)
	if err == nil {
		sentryService.SetSpanSuccess(span)
		return &p, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		sentryService.SetSpanError(span, err)
		return nil, wrapError(err, "Failed to update package status", map[string]any{
			"package_id": u.ID,
			"to_status":  u.To,
		})
	}

	// no row matched: either the package is gone or someone else moved it
	current, getErr := r.Get(ctx, u.ID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, ierr.NewErrorf("package %s is in status %s, expected %s", u.ID, current.Status, u.From).
		WithHintf("Package %s was changed to %s by someone else", current.ShortCode, current.Status).
		WithReportableDetails(map[string]any{
			"package_id":      u.ID,
			"expected_status": u.From,
			"current_status":  current.Status,
		}).
		Mark(ierr.ErrVersionConflict)
}

func (r *packageRepository) Delete(ctx context.Context, id string) error {
	if !types.IsUUID(id) {
		return packageNotFound("id", id)
	}

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM packages WHERE id = $1`, id)
	if err != nil {
		return wrapError(err, "Failed to delete package", map[string]any{"package_id": id})
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return packageNotFound("id", id)
	}
	return nil
}

func packageNotFound(field, value string) error {
	return ierr.NewErrorf("package with %s %s not found", field, value).
		WithHint("No package matches the scanned code").
		WithReportableDetails(map[string]any{field: value}).
		Mark(ierr.ErrNotFound)
}

func packageWhere(filter *types.PackageFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter == nil {
		return "", nil
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(lo.Map(filter.Statuses, func(s types.PackageStatus, _ int) string {
			return string(s)
		})))
		conds = append(conds, "status = ANY("+placeholder(len(args))+")")
	}
	if len(filter.ShortCodes) > 0 {
		args = append(args, pq.Array(filter.ShortCodes))
		conds = append(conds, "short_code = ANY("+placeholder(len(args))+")")
	}
	if filter.DestinationBranchID != "" {
		args = append(args, filter.DestinationBranchID)
		conds = append(conds, "destination_branch_id = "+placeholder(len(args)))
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			args = append(args, *filter.StartTime)
			conds = append(conds, "created_at >= "+placeholder(len(args)))
		}
		if filter.EndTime != nil {
			args = append(args, *filter.EndTime)
			conds = append(conds, "created_at < "+placeholder(len(args)))
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
