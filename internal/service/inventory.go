package service

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/api/dto"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

type InventoryService interface {
	CreateItem(ctx context.Context, req dto.CreateInventoryItemRequest) (*dto.InventoryItemResponse, error)
	GetItem(ctx context.Context, id string) (*dto.InventoryItemResponse, error)
	ListItems(ctx context.Context, filter *types.InventoryItemFilter) (*dto.ListInventoryItemsResponse, error)
	Adjust(ctx context.Context, id string, req dto.AdjustInventoryRequest) (*dto.InventoryItemResponse, error)
}

type inventoryService struct {
	ServiceParams
}

func NewInventoryService(params ServiceParams) InventoryService {
	return &inventoryService{ServiceParams: params}
}

func (s *inventoryService) CreateItem(ctx context.Context, req dto.CreateInventoryItemRequest) (*dto.InventoryItemResponse, error) {
	if err := requireAdmin(ctx, "Only admins can add inventory items"); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item := req.ToItem(ctx)
	if err := s.InventoryRepo.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	resp := &dto.InventoryItemResponse{Item: item}
	if item.Quantity.IsPositive() {
		movement := inventory.NewMovement(ctx, item.ID, nil, item.Quantity, types.MovementReasonRestock, lo.ToPtr("opening stock"))
		if err := s.InventoryRepo.CreateMovement(ctx, movement); err != nil {
			s.Logger.Errorw("failed to record opening stock movement",
				"item_id", item.ID,
				"error", err,
			)
		} else {
			resp.Movements = []*inventory.Movement{movement}
		}
	}
	return resp, nil
}

func (s *inventoryService) GetItem(ctx context.Context, id string) (*dto.InventoryItemResponse, error) {
	item, err := s.InventoryRepo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	movements, err := s.InventoryRepo.ListMovements(ctx, id, types.NewDefaultQueryFilter())
	if err != nil {
		return nil, err
	}
	return &dto.InventoryItemResponse{Item: item, Movements: movements}, nil
}

func (s *inventoryService) ListItems(ctx context.Context, filter *types.InventoryItemFilter) (*dto.ListInventoryItemsResponse, error) {
	if filter == nil {
		filter = types.NewInventoryItemFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	items, err := s.InventoryRepo.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.InventoryRepo.CountItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := types.NewListResponse(lo.Map(items, func(item *inventory.Item, _ int) *dto.InventoryItemResponse {
		return &dto.InventoryItemResponse{Item: item}
	}), total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *inventoryService) Adjust(ctx context.Context, id string, req dto.AdjustInventoryRequest) (*dto.InventoryItemResponse, error) {
	if err := requireAdmin(ctx, "Only admins can adjust stock"); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item, err := s.InventoryRepo.AdjustQuantity(ctx, id, req.Delta)
	if err != nil {
		return nil, err
	}

	movement := inventory.NewMovement(ctx, id, nil, req.Delta, req.Reason, req.Note)
	if err := s.InventoryRepo.CreateMovement(ctx, movement); err != nil {
		// the stock count is already changed; the ledger row is best effort
		s.Logger.Errorw("failed to record inventory movement",
			"item_id", id,
			"delta", req.Delta,
			"error", err,
		)
		s.Sentry.CaptureExceptionWithTags(ctx, err, map[string]string{
			"operation": "inventory.adjust",
			"item_id":   id,
		})
		return &dto.InventoryItemResponse{Item: item}, nil
	}

	s.Logger.Infow("adjusted inventory",
		"item_id", id,
		"delta", req.Delta,
		"reason", req.Reason,
		"quantity", item.Quantity,
	)
	return &dto.InventoryItemResponse{Item: item, Movements: []*inventory.Movement{movement}}, nil
}

func requireAdmin(ctx context.Context, hint string) error {
	if types.IsAdmin(ctx) {
		return nil
	}
	return ierr.NewError("admin role required").
		WithHint(hint).
		WithReportableDetails(map[string]any{"user_id": types.GetUserID(ctx)}).
		Mark(ierr.ErrPermissionDenied)
}
