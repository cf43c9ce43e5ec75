package service

import (
	"context"
	"encoding/json"

	"github.com/parcelbase/parcelbase/internal/api/dto"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// maxShortCodeAttempts bounds regeneration on short code collisions
const maxShortCodeAttempts = 5

type PackageService interface {
	CreatePackage(ctx context.Context, req dto.CreatePackageRequest) (*dto.PackageDetailResponse, error)
	GetPackage(ctx context.Context, id string) (*dto.PackageDetailResponse, error)
	GetPackageByShortCode(ctx context.Context, shortCode string) (*dto.PackageDetailResponse, error)
	ListPackages(ctx context.Context, filter *types.PackageFilter) (*dto.ListPackagesResponse, error)
	ListHistory(ctx context.Context, id string, filter *types.HistoryFilter) (*dto.ListHistoryResponse, error)
	ListScans(ctx context.Context, id string, filter *types.HistoryFilter) (*dto.ListScansResponse, error)
	ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest) (*dto.ChangeStatusResponse, error)
	GetLabel(ctx context.Context, id string) (*dto.LabelResponse, error)
	DeletePackage(ctx context.Context, id string) error
}

type packageService struct {
	ServiceParams
	status StatusService
}

func NewPackageService(params ServiceParams, status StatusService) PackageService {
	return &packageService{ServiceParams: params, status: status}
}

// appliedDecrement is an inventory change to undo if package creation fails
type appliedDecrement struct {
	itemID   string
	quantity decimal.Decimal
}

func (s *packageService) CreatePackage(ctx context.Context, req dto.CreatePackageRequest) (*dto.PackageDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lines := make([]parcel.ContentLine, 0, len(req.Items))
	for _, line := range req.Items {
		item, err := s.InventoryRepo.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		if item.Quantity.LessThan(line.Quantity) {
			return nil, ierr.NewErrorf("item %s has %s in stock, %s requested", item.ID, item.Quantity, line.Quantity).
				WithHintf("Not enough %s in stock", item.Name).
				WithReportableDetails(map[string]any{
					"item_id":   item.ID,
					"available": item.Quantity.String(),
					"requested": line.Quantity.String(),
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		lines = append(lines, parcel.ContentLine{Name: item.Name, Quantity: line.Quantity})
	}

	pkg := req.ToPackage(ctx)
	pkg.ContentsNote = parcel.BuildContentsNote(req.Recipient, lines, req.Note)

	var history *statushistory.History
	var err error
	for attempt := 1; attempt <= maxShortCodeAttempts; attempt++ {
		pkg.ShortCode = types.GenerateShortCode(types.SHORT_CODE_PREFIX_PACKAGE, types.SHORT_CODE_LENGTH)
		history = statushistory.New(ctx, pkg.ID, nil, pkg.Status, pkg.CurrentLocation, nil)

		err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
			if err := s.PackageRepo.Create(txCtx, pkg); err != nil {
				return err
			}
			return s.HistoryRepo.Create(txCtx, history)
		})
		if err == nil || !ierr.IsAlreadyExists(err) {
			break
		}
		s.Logger.Warnw("short code collision, regenerating",
			"short_code", pkg.ShortCode,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, err
	}

	if err := s.consumeInventory(ctx, pkg, req.Items); err != nil {
		return nil, err
	}

	s.Logger.Infow("created package",
		"package_id", pkg.ID,
		"short_code", pkg.ShortCode,
		"items", len(req.Items),
	)

	return &dto.PackageDetailResponse{
		PackageResponse: dto.NewPackageResponse(pkg, s.Config.Tracking.Origin),
		History:         []*statushistory.History{history},
	}, nil
}

// consumeInventory takes the packed items out of stock. The package row is
// already committed, so a failure undoes the applied decrements and removes
// the package before returning the original error.
func (s *packageService) consumeInventory(ctx context.Context, pkg *parcel.Package, items []dto.ContentItemRequest) error {
	applied := make([]appliedDecrement, 0, len(items))
	for _, line := range items {
		if _, err := s.InventoryRepo.AdjustQuantity(ctx, line.ItemID, line.Quantity.Neg()); err != nil {
			s.compensateCreate(ctx, pkg, applied, err)
			return err
		}
		applied = append(applied, appliedDecrement{itemID: line.ItemID, quantity: line.Quantity})

		movement := inventory.NewMovement(ctx, line.ItemID, lo.ToPtr(pkg.ID), line.Quantity.Neg(),
			types.MovementReasonPackageCreated, lo.ToPtr(pkg.ShortCode))
		if err := s.InventoryRepo.CreateMovement(ctx, movement); err != nil {
			s.compensateCreate(ctx, pkg, applied, err)
			return err
		}
	}
	return nil
}

func (s *packageService) compensateCreate(ctx context.Context, pkg *parcel.Package, applied []appliedDecrement, cause error) {
	s.Logger.Errorw("inventory update failed, rolling back package creation",
		"package_id", pkg.ID,
		"short_code", pkg.ShortCode,
		"applied", len(applied),
		"error", cause,
	)
	s.Sentry.CaptureExceptionWithTags(ctx, cause, map[string]string{
		"operation":  "package.create.inventory",
		"package_id": pkg.ID,
	})

	for _, d := range applied {
		if _, err := s.InventoryRepo.AdjustQuantity(ctx, d.itemID, d.quantity); err != nil {
			s.Logger.Errorw("failed to re-credit inventory",
				"item_id", d.itemID,
				"quantity", d.quantity,
				"package_id", pkg.ID,
				"error", err,
			)
			continue
		}
		movement := inventory.NewMovement(ctx, d.itemID, lo.ToPtr(pkg.ID), d.quantity,
			types.MovementReasonCompensation, lo.ToPtr("package creation rolled back"))
		if err := s.InventoryRepo.CreateMovement(ctx, movement); err != nil {
			s.Logger.Errorw("failed to record compensation movement",
				"item_id", d.itemID,
				"package_id", pkg.ID,
				"error", err,
			)
		}
	}

	if err := s.removePackage(ctx, pkg.ID); err != nil {
		s.Logger.Errorw("failed to remove package after inventory failure",
			"package_id", pkg.ID,
			"error", err,
		)
	}
}

func (s *packageService) GetPackage(ctx context.Context, id string) (*dto.PackageDetailResponse, error) {
	pkg, err := s.PackageRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, pkg)
}

func (s *packageService) GetPackageByShortCode(ctx context.Context, shortCode string) (*dto.PackageDetailResponse, error) {
	pkg, err := s.PackageRepo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, pkg)
}

func (s *packageService) detail(ctx context.Context, pkg *parcel.Package) (*dto.PackageDetailResponse, error) {
	history, err := s.HistoryRepo.ListByPackage(ctx, types.NewHistoryFilter(pkg.ID, s.Config.Scanner.HistoryLimit))
	if err != nil {
		return nil, err
	}
	return &dto.PackageDetailResponse{
		PackageResponse: dto.NewPackageResponse(pkg, s.Config.Tracking.Origin),
		History:         history,
	}, nil
}

func (s *packageService) ListPackages(ctx context.Context, filter *types.PackageFilter) (*dto.ListPackagesResponse, error) {
	if filter == nil {
		filter = types.NewPackageFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	packages, err := s.PackageRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PackageRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(packages, func(p *parcel.Package, _ int) *dto.PackageResponse {
		return dto.NewPackageResponse(p, s.Config.Tracking.Origin)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *packageService) ListHistory(ctx context.Context, id string, filter *types.HistoryFilter) (*dto.ListHistoryResponse, error) {
	filter, err := s.historyFilter(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	history, err := s.HistoryRepo.ListByPackage(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := types.NewListResponse(history, len(history), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *packageService) ListScans(ctx context.Context, id string, filter *types.HistoryFilter) (*dto.ListScansResponse, error) {
	filter, err := s.historyFilter(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	scans, err := s.ScanRepo.ListByPackage(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := types.NewListResponse(scans, len(scans), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

// historyFilter checks the package exists and scopes filter to it
func (s *packageService) historyFilter(ctx context.Context, id string, filter *types.HistoryFilter) (*types.HistoryFilter, error) {
	if _, err := s.PackageRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = types.NewHistoryFilter(id, 0)
	}
	filter.PackageID = id
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return filter, nil
}

func (s *packageService) ChangeStatus(ctx context.Context, id string, req dto.ChangeStatusRequest) (*dto.ChangeStatusResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	change, err := s.status.ChangeStatus(ctx, &scanner.StatusRequest{
		PackageID:      id,
		ExpectedStatus: req.ExpectedStatus,
		ToStatus:       req.ToStatus,
		Location:       req.Location,
		Note:           req.Note,
		Mode:           types.ScanModeManual,
		Force:          req.Force,
	})
	if err != nil {
		return nil, err
	}

	return &dto.ChangeStatusResponse{
		Package:       dto.NewPackageResponse(change.Package, s.Config.Tracking.Origin),
		History:       change.History,
		AuditComplete: change.AuditComplete,
		AuditFailures: change.AuditFailures,
	}, nil
}

func (s *packageService) GetLabel(ctx context.Context, id string) (*dto.LabelResponse, error) {
	pkg, err := s.PackageRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"id":         pkg.ID,
		"short_code": pkg.ShortCode,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not build the label code").
			Mark(ierr.ErrSystem)
	}

	return &dto.LabelResponse{
		PackageID:    pkg.ID,
		ShortCode:    pkg.ShortCode,
		TrackingURL:  parcel.TrackingURL(s.Config.Tracking.Origin, pkg.ShortCode),
		QRPayload:    string(payload),
		ContentsNote: pkg.ContentsNote,
	}, nil
}

func (s *packageService) DeletePackage(ctx context.Context, id string) error {
	if !types.IsAdmin(ctx) {
		return ierr.NewError("deleting packages requires admin").
			WithHint("Only admins can delete packages").
			Mark(ierr.ErrPermissionDenied)
	}
	if _, err := s.PackageRepo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.removePackage(ctx, id); err != nil {
		return err
	}

	s.Logger.Infow("deleted package", "package_id", id)
	return nil
}

// removePackage deletes scans, history and the package row in that order.
// Foreign keys are not assumed to cascade.
func (s *packageService) removePackage(ctx context.Context, id string) error {
	return s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ScanRepo.DeleteByPackage(txCtx, id); err != nil {
			return err
		}
		if err := s.HistoryRepo.DeleteByPackage(txCtx, id); err != nil {
			return err
		}
		return s.PackageRepo.Delete(txCtx, id)
	})
}
