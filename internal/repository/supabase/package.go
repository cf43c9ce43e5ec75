package supabase

import (
	"context"
	"strconv"
	"time"

	"github.com/nedpals/supabase-go"
	postgrest "github.com/nedpals/supabase-go/postgrest/pkg"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

type packageRepository struct {
	client *supabase.Client
	logger *logger.Logger
}

func NewPackageRepository(client *supabase.Client, logger *logger.Logger) parcel.Repository {
	return &packageRepository{client: client, logger: logger}
}

func (r *packageRepository) Create(ctx context.Context, p *parcel.Package) error {
	var rows []parcel.Package
	if err := r.client.DB.From(tablePackages).Insert(p).Execute(&rows); err != nil {
		return wrapError(err, "Failed to create package", map[string]any{
			"package_id": p.ID,
			"short_code": p.ShortCode,
		})
	}
	return nil
}

func (r *packageRepository) Get(ctx context.Context, id string) (*parcel.Package, error) {
	if !types.IsUUID(id) {
		return nil, packageNotFound("id", id)
	}
	return r.getBy(ctx, "id", id)
}

func (r *packageRepository) GetByShortCode(ctx context.Context, shortCode string) (*parcel.Package, error) {
	return r.getBy(ctx, "short_code", shortCode)
}

func (r *packageRepository) getBy(_ context.Context, column, value string) (*parcel.Package, error) {
	var rows []parcel.Package
	if err := r.client.DB.From(tablePackages).Select(selectAll).Eq(column, value).Execute(&rows); err != nil {
		return nil, wrapError(err, "Failed to look up package", map[string]any{column: value})
	}
	if len(rows) == 0 {
		return nil, packageNotFound(column, value)
	}
	return &rows[0], nil
}

// packageSortColumns maps the accepted sort keys to columns
var packageSortColumns = map[string]string{
	"short_code": "short_code",
	"updated_at": "updated_at",
	"created_at": "created_at",
}

func filterPackages(q *postgrest.FilterRequestBuilder, filter *types.PackageFilter) *postgrest.FilterRequestBuilder {
	if filter.DestinationBranchID != "" {
		q = q.Eq("destination_branch_id", filter.DestinationBranchID)
	}
	if len(filter.Statuses) > 0 {
		q = q.In("status", lo.Map(filter.Statuses, func(s types.PackageStatus, _ int) string { return string(s) }))
	}
	if len(filter.ShortCodes) > 0 {
		q = q.In("short_code", filter.ShortCodes)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			q = q.Gte("created_at", filter.StartTime.UTC().Format(time.RFC3339Nano))
		}
		if filter.EndTime != nil {
			q = q.Lt("created_at", filter.EndTime.UTC().Format(time.RFC3339Nano))
		}
	}
	return q
}

func (r *packageRepository) List(ctx context.Context, filter *types.PackageFilter) ([]*parcel.Package, error) {
	column, ok := packageSortColumns[filter.GetSort()]
	if !ok {
		column = "created_at"
	}

	var rows []*parcel.Package
	sel := listRange(r.client.DB.From(tablePackages).Select(selectAll),
		filter.GetOrder(), filter.GetLimit(), filter.GetOffset(), column, "id")
	if err := filterPackages(&sel.FilterRequestBuilder, filter).ExecuteWithContext(ctx, &rows); err != nil {
		return nil, wrapError(err, "Failed to list packages", nil)
	}
	return rows, nil
}

func (r *packageRepository) Count(ctx context.Context, filter *types.PackageFilter) (int, error) {
	var count int
	sel := r.client.DB.From(tablePackages).Select("id").Count()
	if err := filterPackages(&sel.FilterRequestBuilder, filter).ExecuteWithContext(ctx, &count); err != nil {
		return 0, wrapError(err, "Failed to count packages", nil)
	}
	return count, nil
}

// UpdateStatus is a compare-and-swap on (status, version). The PATCH returns
// the rows it changed, so this write won exactly when one row comes back.
func (r *packageRepository) UpdateStatus(ctx context.Context, u *parcel.StatusUpdate) (*parcel.Package, error) {
	current, err := r.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if current.Status != u.From {
		return nil, statusConflict(u, current)
	}

	patch := map[string]interface{}{
		"status":     u.To,
		"version":    current.Version + 1,
		"updated_at": u.UpdatedAt.UTC().Truncate(time.Microsecond),
		"updated_by": u.UpdatedBy,
	}
	if u.Location != nil {
		patch["current_location"] = *u.Location
	}

	var rows []parcel.Package
	err = r.client.DB.From(tablePackages).
		Update(patch).
		Eq("id", u.ID).
		Eq("status", string(u.From)).
		Eq("version", strconv.Itoa(current.Version)).
		ExecuteWithContext(ctx, &rows)
	if err != nil {
		return nil, wrapError(err, "Failed to update package status", map[string]any{
			"package_id": u.ID,
			"to_status":  u.To,
		})
	}
	if len(rows) == 1 {
		return &rows[0], nil
	}

	// lost the race; report whatever the winner left behind
	after, err := r.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return nil, statusConflict(u, after)
}

func (r *packageRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	var rows []parcel.Package
	if err := r.client.DB.From(tablePackages).Delete().Eq("id", id).Execute(&rows); err != nil {
		return wrapError(err, "Failed to delete package", map[string]any{"package_id": id})
	}
	return nil
}

func packageNotFound(field, value string) error {
	return ierr.NewErrorf("package with %s %s not found", field, value).
		WithHint("No package matches the scanned code").
		WithReportableDetails(map[string]any{field: value}).
		Mark(ierr.ErrNotFound)
}

func statusConflict(u *parcel.StatusUpdate, current *parcel.Package) error {
	return ierr.NewErrorf("package %s is in status %s, expected %s", u.ID, current.Status, u.From).
		WithHintf("Package %s was changed to %s by someone else", current.ShortCode, current.Status).
		WithReportableDetails(map[string]any{
			"package_id":      u.ID,
			"expected_status": u.From,
			"current_status":  current.Status,
		}).
		Mark(ierr.ErrVersionConflict)
}
