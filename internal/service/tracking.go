package service

import (
	"context"
	"sort"

	"github.com/parcelbase/parcelbase/internal/api/dto"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

// TrackingService serves the public tracking page a label's URL points to
type TrackingService interface {
	Track(ctx context.Context, shortCode string) (*dto.TrackingResponse, error)
}

type trackingService struct {
	ServiceParams
}

func NewTrackingService(params ServiceParams) TrackingService {
	return &trackingService{ServiceParams: params}
}

func (s *trackingService) Track(ctx context.Context, shortCode string) (*dto.TrackingResponse, error) {
	pkg, err := s.PackageRepo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	history, err := s.HistoryRepo.ListByPackage(ctx, types.NewHistoryFilter(pkg.ID, 0))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})

	return &dto.TrackingResponse{
		ShortCode:           pkg.ShortCode,
		Status:              pkg.Status,
		CurrentLocation:     pkg.CurrentLocation,
		Origin:              pkg.Origin,
		DestinationBranchID: pkg.DestinationBranchID,
		UpdatedAt:           pkg.UpdatedAt,
		Events: lo.Map(history, func(h *statushistory.History, _ int) dto.TrackingEvent {
			return dto.TrackingEvent{Status: h.ToStatus, Location: h.Location, At: h.CreatedAt}
		}),
	}, nil
}
